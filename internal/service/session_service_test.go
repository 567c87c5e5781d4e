package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"certprep_backend/internal/model"
	"certprep_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSessionStore struct {
	sessions map[string]*model.TestSession
	order    map[string][]uint
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]*model.TestSession),
		order:    make(map[string][]uint),
	}
}

func (f *fakeSessionStore) CreateWithQuestions(session *model.TestSession, questionIDs []uint) error {
	if session.ID == "" {
		session.ID = model.GenerateUUID()
	}
	stored := *session
	f.sessions[session.ID] = &stored
	f.order[session.ID] = append([]uint(nil), questionIDs...)
	return nil
}

func (f *fakeSessionStore) FindByID(id string) (*model.TestSession, error) {
	stored, ok := f.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	dup := *stored
	return &dup, nil
}

func (f *fakeSessionStore) FindQuestionIDs(sessionID string) ([]uint, error) {
	return f.order[sessionID], nil
}

func (f *fakeSessionStore) ListByUser(userID uint, offset, limit int) ([]model.TestSession, error) {
	var out []model.TestSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSessionStore) CountByUser(userID uint) (int64, error) {
	var total int64
	for _, s := range f.sessions {
		if s.UserID == userID {
			total++
		}
	}
	return total, nil
}

func (f *fakeSessionStore) UpdateStatus(id string, status model.SessionStatus) error {
	if s, ok := f.sessions[id]; ok && !s.IsCompleted {
		s.Status = status
	}
	return nil
}

func (f *fakeSessionStore) MarkCompleted(id string, completedAt time.Time, score, maxScore, percentage float64) (bool, error) {
	s, ok := f.sessions[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if s.IsCompleted {
		return false, nil
	}
	s.IsCompleted = true
	s.Status = model.SessionCompleted
	s.CompletedAt = &completedAt
	s.Score = score
	s.MaxScore = maxScore
	s.Percentage = percentage
	return true, nil
}

func (f *fakeSessionStore) FindPendingAggregation(limit int) ([]model.TestSession, error) {
	var out []model.TestSession
	for _, s := range f.sessions {
		if s.IsCompleted && !s.ProgressApplied {
			out = append(out, *s)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeAnswerStore struct {
	records map[string]*model.AnswerRecord // sessionID/questionID
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{records: make(map[string]*model.AnswerRecord)}
}

func answerKey(sessionID string, questionID uint) string {
	return fmt.Sprintf("%s/%d", sessionID, questionID)
}

func (f *fakeAnswerStore) Upsert(record *model.AnswerRecord) error {
	stored := *record
	f.records[answerKey(record.SessionID, record.QuestionID)] = &stored
	return nil
}

func (f *fakeAnswerStore) ListBySession(sessionID string) ([]model.AnswerRecord, error) {
	var out []model.AnswerRecord
	for _, r := range f.records {
		if r.SessionID == sessionID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// gradedQuestions 每题两个选项，正确选项的ID固定为题目ID*10
func gradedQuestions(categoryID uint, n, points int) []model.Question {
	out := make([]model.Question, n)
	for i := 0; i < n; i++ {
		qid := uint(i + 1)
		out[i] = model.Question{
			BaseModel:  model.BaseModel{ID: qid},
			CategoryID: categoryID,
			Type:       model.SingleChoice,
			Points:     points,
			IsActive:   true,
			Options: []model.QuestionOption{
				{BaseModel: model.BaseModel{ID: qid * 10}, IsCorrect: true},
				{BaseModel: model.BaseModel{ID: qid*10 + 1}, IsCorrect: false},
			},
		}
	}
	return out
}

type sessionHarness struct {
	sessions *fakeSessionStore
	answers  *fakeAnswerStore
	progress *fakeProgressStore
	clock    *fixedClock
	svc      *SessionService
}

func newSessionHarness(t *testing.T, questions []model.Question) *sessionHarness {
	t.Helper()

	sessions := newFakeSessionStore()
	answers := newFakeAnswerStore()
	qs := &fakeQuestionStore{questions: questions}
	progress := newFakeProgressStore()
	clock := &fixedClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	// 聚合成功后回写会话上的折算标记，模拟真实事务的行为
	progress.onClaim = func(sessionID string) {
		if s, ok := sessions.sessions[sessionID]; ok {
			s.ProgressApplied = true
		}
	}

	bank := NewQuestionBankService(&fakeCategoryStore{}, qs, nil, 0)
	progressSvc := NewProgressService(progress, clock)
	svc := NewSessionService(sessions, answers, qs, bank, NewGrader(nil), progressSvc, clock, 90)

	return &sessionHarness{
		sessions: sessions,
		answers:  answers,
		progress: progress,
		clock:    clock,
		svc:      svc,
	}
}

func (h *sessionHarness) createSession(t *testing.T, userID uint, count, limitMinutes int) *model.TestSession {
	t.Helper()
	result, err := h.svc.CreateSession(userID, CreateSessionRequest{
		CategoryIDs:      []uint{1},
		QuestionCount:    count,
		TimeLimitMinutes: limitMinutes,
	})
	require.NoError(t, err)
	return result.Session
}

func TestCreateSession_Validation(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 5, 10))

	tests := []struct {
		name string
		req  CreateSessionRequest
	}{
		{"no categories", CreateSessionRequest{QuestionCount: 5, TimeLimitMinutes: 30}},
		{"zero count", CreateSessionRequest{CategoryIDs: []uint{1}, TimeLimitMinutes: 30}},
		{"count over limit", CreateSessionRequest{CategoryIDs: []uint{1}, QuestionCount: 91, TimeLimitMinutes: 30}},
		{"zero time limit", CreateSessionRequest{CategoryIDs: []uint{1}, QuestionCount: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateSession(7, tt.req)
			assert.True(t, errors.Is(err, util.ErrInvalidConfig))
		})
	}

	assert.Empty(t, h.sessions.sessions, "failed validation must not create a session")
}

func TestCreateSession_DefaultsAndFreeze(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 20, 10))

	result, err := h.svc.CreateSession(7, CreateSessionRequest{
		CategoryIDs:      []uint{1},
		QuestionCount:    10,
		TimeLimitMinutes: 30,
	})
	require.NoError(t, err)

	session := result.Session
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "Practice Test - 2025-06-01", session.SessionName)
	assert.Equal(t, model.SessionOpen, session.Status)
	assert.Equal(t, 10, session.TotalQuestions)
	assert.False(t, result.Partial)
	assert.Equal(t, 10, result.CountActual)

	// 顺序被冻结
	ids, err := h.sessions.FindQuestionIDs(session.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 10)
}

func TestCreateSession_PartialPool(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 4, 10))

	result, err := h.svc.CreateSession(7, CreateSessionRequest{
		CategoryIDs:      []uint{1},
		QuestionCount:    10,
		TimeLimitMinutes: 30,
	})
	require.NoError(t, err)

	assert.True(t, result.Partial)
	assert.Equal(t, 10, result.CountRequested)
	assert.Equal(t, 4, result.CountActual)
	assert.True(t, result.Session.IsPartial)
	assert.Equal(t, 4, result.Session.TotalQuestions)
}

func TestSubmitAnswer_GradesAndOverwrites(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 3, 10))
	session := h.createSession(t, 7, 3, 30)

	qid := h.sessions.order[session.ID][0]
	correctID := qid * 10
	wrongID := qid*10 + 1

	record, err := h.svc.SubmitAnswer(7, session.ID, SubmitAnswerRequest{
		QuestionID:       qid,
		SelectedOptionID: &correctID,
	})
	require.NoError(t, err)
	assert.True(t, record.IsCorrect)
	assert.Equal(t, 10.0, record.PointsEarned)

	// 首次提交后状态推进到 answering
	stored, err := h.sessions.FindByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionAnswering, stored.Status)

	// 重复提交覆盖之前的作答
	record, err = h.svc.SubmitAnswer(7, session.ID, SubmitAnswerRequest{
		QuestionID:       qid,
		SelectedOptionID: &wrongID,
	})
	require.NoError(t, err)
	assert.False(t, record.IsCorrect)

	answers, err := h.answers.ListBySession(session.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1, "resubmission must overwrite, not append")
	assert.False(t, answers[0].IsCorrect)
}

func TestSubmitAnswer_UnknownQuestion(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 3, 10))
	session := h.createSession(t, 7, 3, 30)

	optionID := uint(999)
	_, err := h.svc.SubmitAnswer(7, session.ID, SubmitAnswerRequest{
		QuestionID:       999,
		SelectedOptionID: &optionID,
	})
	assert.True(t, errors.Is(err, util.ErrUnknownQuestion))
}

func TestSubmitAnswer_OwnershipAndExistence(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 3, 10))
	session := h.createSession(t, 7, 3, 30)

	_, err := h.svc.SubmitAnswer(8, session.ID, SubmitAnswerRequest{QuestionID: 1})
	assert.True(t, errors.Is(err, util.ErrPermissionDenied))

	_, err = h.svc.SubmitAnswer(7, "no-such-session", SubmitAnswerRequest{QuestionID: 1})
	assert.True(t, errors.Is(err, util.ErrSessionNotFound))
}

func TestSubmitAnswer_ExpiryBoundary(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 3, 10))
	session := h.createSession(t, 7, 3, 30)

	qid := h.sessions.order[session.ID][0]
	correctID := qid * 10

	// 正好到达时限还不算超时
	h.clock.Advance(30 * time.Minute)
	_, err := h.svc.SubmitAnswer(7, session.ID, SubmitAnswerRequest{
		QuestionID:       qid,
		SelectedOptionID: &correctID,
	})
	require.NoError(t, err)

	// 过时限1秒：提交被拒，会话被终结，完成时刻记为超时时刻
	h.clock.Advance(time.Second)
	qid2 := h.sessions.order[session.ID][1]
	_, err = h.svc.SubmitAnswer(7, session.ID, SubmitAnswerRequest{
		QuestionID:       qid2,
		SelectedOptionID: &correctID,
	})
	assert.True(t, errors.Is(err, util.ErrSessionExpired))

	stored, err := h.sessions.FindByID(session.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.Equal(t, model.SessionCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, session.StartedAt.Add(30*time.Minute), *stored.CompletedAt)

	// 已终结的会话拒绝后续提交
	_, err = h.svc.SubmitAnswer(7, session.ID, SubmitAnswerRequest{
		QuestionID:       qid2,
		SelectedOptionID: &correctID,
	})
	assert.True(t, errors.Is(err, util.ErrSessionCompleted))
}

func TestCompleteSession_ScoresAndIdempotence(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 3, 10))
	session := h.createSession(t, 7, 3, 30)

	qid := h.sessions.order[session.ID][0]
	correctID := qid * 10
	_, err := h.svc.SubmitAnswer(7, session.ID, SubmitAnswerRequest{
		QuestionID:       qid,
		SelectedOptionID: &correctID,
	})
	require.NoError(t, err)

	result, err := h.svc.CompleteSession(7, session.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, 10.0, result.Score)
	assert.Equal(t, 30.0, result.MaxScore)
	assert.Equal(t, 33.33, result.Percentage)
	require.NotNil(t, result.CompletedAt)

	// 幂等：重复完成返回同样的成绩，聚合只生效一次
	again, err := h.svc.CompleteSession(7, session.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	assert.Equal(t, result.Score, again.Score)
	assert.Equal(t, result.Percentage, again.Percentage)
	assert.Equal(t, 1, h.progress.testsTaken[7])
}

func TestCompleteSession_ZeroMaxScore(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 2, 0))
	session := h.createSession(t, 7, 2, 30)

	result, err := h.svc.CompleteSession(7, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.MaxScore)
	assert.Equal(t, 0.0, result.Percentage)
}

func TestCompleteSession_AfterExpiryClampsCompletionTime(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 2, 10))
	session := h.createSession(t, 7, 2, 30)

	h.clock.Advance(45 * time.Minute)
	result, err := h.svc.CompleteSession(7, session.ID)
	require.NoError(t, err)
	require.NotNil(t, result.CompletedAt)
	assert.Equal(t, session.StartedAt.Add(30*time.Minute), *result.CompletedAt)
}

func TestCompleteSession_AggregationFailureAndReconcile(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 2, 10))
	session := h.createSession(t, 7, 2, 30)

	h.progress.failNextClaim = errors.New("deadlock")

	result, err := h.svc.CompleteSession(7, session.ID)
	assert.True(t, errors.Is(err, util.ErrAggregationFailed))
	require.NotNil(t, result, "the score is already final even when aggregation fails")
	assert.Equal(t, 20.0, result.MaxScore)

	stored, err := h.sessions.FindByID(session.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.False(t, stored.ProgressApplied)
	assert.Equal(t, 0, h.progress.testsTaken[7])

	// 对账任务重放后聚合生效
	require.NoError(t, h.svc.ReconcilePendingAggregations(10))

	stored, err = h.sessions.FindByID(session.ID)
	require.NoError(t, err)
	assert.True(t, stored.ProgressApplied)
	assert.Equal(t, 1, h.progress.testsTaken[7])
}

func TestGetSessionDetail_HidesAndRevealsCorrectness(t *testing.T) {
	h := newSessionHarness(t, gradedQuestions(1, 2, 10))
	session := h.createSession(t, 7, 2, 30)

	qid := h.sessions.order[session.ID][0]
	correctID := qid * 10
	_, err := h.svc.SubmitAnswer(7, session.ID, SubmitAnswerRequest{
		QuestionID:       qid,
		SelectedOptionID: &correctID,
	})
	require.NoError(t, err)

	// 进行中：不暴露判定结果，返回剩余时间和已选答案
	detail, err := h.svc.GetSessionDetail(7, session.ID)
	require.NoError(t, err)
	assert.Greater(t, detail.RemainingSeconds, 0)
	assert.Nil(t, detail.Score)
	for _, q := range detail.Questions {
		assert.Nil(t, q.CorrectOptionID)
		assert.Nil(t, q.IsCorrect)
	}

	_, err = h.svc.CompleteSession(7, session.ID)
	require.NoError(t, err)

	// 完成后：判定结果和标准答案可见
	detail, err = h.svc.GetSessionDetail(7, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.RemainingSeconds)
	require.NotNil(t, detail.Score)
	for _, q := range detail.Questions {
		require.NotNil(t, q.CorrectOptionID)
	}
}
