package service

import (
	"certprep_backend/internal/model"
	"certprep_backend/internal/util"
	"certprep_backend/pkg/logger"
	"certprep_backend/pkg/monitoring"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionStore 会话持久化边界
type SessionStore interface {
	CreateWithQuestions(session *model.TestSession, questionIDs []uint) error
	FindByID(id string) (*model.TestSession, error)
	FindQuestionIDs(sessionID string) ([]uint, error)
	ListByUser(userID uint, offset, limit int) ([]model.TestSession, error)
	CountByUser(userID uint) (int64, error)
	UpdateStatus(id string, status model.SessionStatus) error
	MarkCompleted(id string, completedAt time.Time, score, maxScore, percentage float64) (bool, error)
	FindPendingAggregation(limit int) ([]model.TestSession, error)
}

// AnswerStore 作答记录持久化边界
type AnswerStore interface {
	Upsert(record *model.AnswerRecord) error
	ListBySession(sessionID string) ([]model.AnswerRecord, error)
}

// SessionService 会话构建与状态机：open → answering → completed。
// completed 是终态。超时在每次提交/完成时惰性判定，不依赖后台定时器。
type SessionService struct {
	Sessions     SessionStore
	Answers      AnswerStore
	Questions    QuestionStore
	Bank         *QuestionBankService
	Grader       *Grader
	Progress     *ProgressService
	Clock        Clock
	MaxQuestions int

	// 同一会话的提交串行化；跨会话互不阻塞
	locks sync.Map
}

func NewSessionService(sessions SessionStore, answers AnswerStore, questions QuestionStore, bank *QuestionBankService, grader *Grader, progress *ProgressService, clock Clock, maxQuestions int) *SessionService {
	if clock == nil {
		clock = SystemClock
	}
	if maxQuestions <= 0 {
		maxQuestions = 90
	}
	return &SessionService{
		Sessions:     sessions,
		Answers:      answers,
		Questions:    questions,
		Bank:         bank,
		Grader:       grader,
		Progress:     progress,
		Clock:        clock,
		MaxQuestions: maxQuestions,
	}
}

func (s *SessionService) lock(sessionID string) func() {
	v, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type CreateSessionRequest struct {
	CategoryIDs      []uint `json:"categoryIds" binding:"required"`
	QuestionCount    int    `json:"questionCount" binding:"required"`
	TimeLimitMinutes int    `json:"timeLimitMinutes" binding:"required"`
	SessionName      string `json:"sessionName"`
}

type CreateSessionResult struct {
	Session        *model.TestSession `json:"session"`
	CountRequested int                `json:"countRequested"`
	CountActual    int                `json:"countActual"`
	Partial        bool               `json:"partial"`
}

// CreateSession 校验配置、抽题并冻结顺序，落库后才返回。
// 校验失败不产生任何副作用；落库失败不返回会话。
func (s *SessionService) CreateSession(userID uint, req CreateSessionRequest) (*CreateSessionResult, error) {
	if len(req.CategoryIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one category required", util.ErrInvalidConfig)
	}
	if req.QuestionCount <= 0 {
		return nil, fmt.Errorf("%w: question count must be positive", util.ErrInvalidConfig)
	}
	if req.QuestionCount > s.MaxQuestions {
		return nil, fmt.Errorf("%w: question count exceeds limit of %d", util.ErrInvalidConfig, s.MaxQuestions)
	}
	if req.TimeLimitMinutes <= 0 {
		return nil, fmt.Errorf("%w: time limit must be positive", util.ErrInvalidConfig)
	}

	now := s.Clock.Now()

	// 抽题种子取创建时刻，顺序随后由 session_questions 冻结
	questions, partial, err := s.Bank.SelectQuestions(req.CategoryIDs, req.QuestionCount, now.UnixNano())
	if err != nil {
		return nil, err
	}

	name := req.SessionName
	if name == "" {
		name = "Practice Test - " + now.Format(util.DateFormat)
	}

	session := &model.TestSession{
		UserID:           userID,
		SessionName:      name,
		TotalQuestions:   len(questions),
		TimeLimitMinutes: req.TimeLimitMinutes,
		Status:           model.SessionOpen,
		IsPartial:        partial,
		StartedAt:        now,
	}

	questionIDs := make([]uint, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
	}

	if err := s.Sessions.CreateWithQuestions(session, questionIDs); err != nil {
		return nil, err
	}

	monitoring.SessionsCreated.Inc()
	logger.Log.Info("test session created",
		zap.String("sessionId", session.ID),
		zap.Uint("userId", userID),
		zap.Int("requested", req.QuestionCount),
		zap.Int("actual", len(questions)),
		zap.Bool("partial", partial),
	)

	return &CreateSessionResult{
		Session:        session,
		CountRequested: req.QuestionCount,
		CountActual:    len(questions),
		Partial:        partial,
	}, nil
}

type SubmitAnswerRequest struct {
	QuestionID       uint   `json:"questionId" binding:"required"`
	SelectedOptionID *uint  `json:"selectedOptionId"`
	UserAnswer       string `json:"userAnswer"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// SubmitAnswer 提交一题的作答。仅在 open/answering 状态下允许；
// 同一题重复提交按 upsert 覆盖（last write wins），完成前都可改答案。
// 检测到超时会先把会话终结，再向调用方返回 ErrSessionExpired，
// 触发检测的这次提交不评分。
func (s *SessionService) SubmitAnswer(userID uint, sessionID string, req SubmitAnswerRequest) (*model.AnswerRecord, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.loadOwned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted {
		return nil, util.ErrSessionCompleted
	}

	now := s.Clock.Now()
	if now.After(session.ExpiresAt()) {
		// 聚合失败不拦截超时语义，由对账任务兜底
		if _, err := s.finalize(session, session.ExpiresAt(), "expired"); err != nil && !errors.Is(err, util.ErrAggregationFailed) {
			return nil, err
		}
		return nil, util.ErrSessionExpired
	}

	questionIDs, err := s.Sessions.FindQuestionIDs(sessionID)
	if err != nil {
		return nil, err
	}
	inSession := false
	for _, id := range questionIDs {
		if id == req.QuestionID {
			inSession = true
			break
		}
	}
	if !inSession {
		return nil, fmt.Errorf("%w: question %d", util.ErrUnknownQuestion, req.QuestionID)
	}

	questions, err := s.Questions.FindByIDs([]uint{req.QuestionID})
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: question %d", util.ErrUnknownQuestion, req.QuestionID)
	}
	question := questions[0]

	correct, points := s.Grader.Grade(&question, AnswerSubmission{
		SelectedOptionID: req.SelectedOptionID,
		Text:             req.UserAnswer,
	})

	record := &model.AnswerRecord{
		SessionID:        sessionID,
		QuestionID:       req.QuestionID,
		SelectedOptionID: req.SelectedOptionID,
		UserAnswer:       req.UserAnswer,
		IsCorrect:        correct,
		PointsEarned:     points,
		TimeSpentSeconds: req.TimeSpentSeconds,
		SubmittedAt:      now,
	}
	if err := s.Answers.Upsert(record); err != nil {
		return nil, err
	}

	if session.Status == model.SessionOpen {
		if err := s.Sessions.UpdateStatus(sessionID, model.SessionAnswering); err != nil {
			logger.Log.Warn("failed to advance session status", zap.String("sessionId", sessionID), zap.Error(err))
		}
	}

	return record, nil
}

type CompletionResult struct {
	SessionID        string     `json:"sessionId"`
	Score            float64    `json:"score"`
	MaxScore         float64    `json:"maxScore"`
	Percentage       float64    `json:"percentage"`
	CompletedAt      *time.Time `json:"completedAt"`
	AlreadyCompleted bool       `json:"alreadyCompleted"`
}

// CompleteSession 终结会话并计算最终成绩。幂等：重复调用返回
// 同样的成绩并带 alreadyCompleted 标记，聚合只发生一次。
// 未作答的题目按 0 分计，不阻止完成。
// 聚合失败不回滚完成，错误包装为 ErrAggregationFailed 交由调用方
// 感知，由后台对账任务重试。
func (s *SessionService) CompleteSession(userID uint, sessionID string) (*CompletionResult, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.loadOwned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted {
		return completionFromSession(session, true), nil
	}

	now := s.Clock.Now()
	if now.After(session.ExpiresAt()) {
		// 超时后的显式完成仍然允许，完成时刻记为超时时刻
		now = session.ExpiresAt()
	}

	return s.finalize(session, now, "finalize")
}

// finalize 计算成绩、原子落库并同步触发进度聚合。调用方需持有会话锁。
func (s *SessionService) finalize(session *model.TestSession, completedAt time.Time, reason string) (*CompletionResult, error) {
	answers, err := s.Answers.ListBySession(session.ID)
	if err != nil {
		return nil, err
	}
	questionIDs, err := s.Sessions.FindQuestionIDs(session.ID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Questions.FindByIDs(questionIDs)
	if err != nil {
		return nil, err
	}

	var score, maxScore float64
	for _, rec := range answers {
		score += rec.PointsEarned
	}
	for _, q := range questions {
		maxScore += float64(q.Points)
	}
	percentage := 0.0
	if maxScore > 0 {
		percentage = util.Round2(100 * score / maxScore)
	}

	committed, err := s.Sessions.MarkCompleted(session.ID, completedAt, score, maxScore, percentage)
	if err != nil {
		return nil, err
	}
	if !committed {
		// 并发的完成请求抢先了，重读已定稿的结果
		fresh, err := s.Sessions.FindByID(session.ID)
		if err != nil {
			return nil, err
		}
		return completionFromSession(fresh, true), nil
	}

	session.IsCompleted = true
	session.Status = model.SessionCompleted
	session.CompletedAt = &completedAt
	session.Score = score
	session.MaxScore = maxScore
	session.Percentage = percentage

	monitoring.SessionsCompleted.WithLabelValues(reason).Inc()
	logger.Log.Info("test session completed",
		zap.String("sessionId", session.ID),
		zap.String("reason", reason),
		zap.Float64("score", score),
		zap.Float64("percentage", percentage),
	)

	result := completionFromSession(session, false)

	if err := s.Progress.ApplyCompletedSession(session, answers, questions); err != nil {
		logger.Log.Error("progress aggregation failed, will be retried",
			zap.String("sessionId", session.ID), zap.Error(err))
		return result, fmt.Errorf("%w: %v", util.ErrAggregationFailed, err)
	}

	return result, nil
}

func completionFromSession(session *model.TestSession, already bool) *CompletionResult {
	return &CompletionResult{
		SessionID:        session.ID,
		Score:            session.Score,
		MaxScore:         session.MaxScore,
		Percentage:       session.Percentage,
		CompletedAt:      session.CompletedAt,
		AlreadyCompleted: already,
	}
}

func (s *SessionService) loadOwned(userID uint, sessionID string) (*model.TestSession, error) {
	session, err := s.Sessions.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return session, nil
}

// ListSessions 分页返回用户的会话历史，按创建时间倒序
func (s *SessionService) ListSessions(userID uint, page, limit int) ([]model.TestSession, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	total, err := s.Sessions.CountByUser(userID)
	if err != nil {
		return nil, 0, err
	}
	sessions, err := s.Sessions.ListByUser(userID, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// ReconcilePendingAggregations 对账：重放已完成但尚未折算进度的会话。
// ClaimSession 的领取标记保证与同步路径不会重复生效。
func (s *SessionService) ReconcilePendingAggregations(batch int) error {
	sessions, err := s.Sessions.FindPendingAggregation(batch)
	if err != nil {
		return err
	}

	for i := range sessions {
		session := &sessions[i]
		answers, err := s.Answers.ListBySession(session.ID)
		if err != nil {
			return err
		}
		questionIDs, err := s.Sessions.FindQuestionIDs(session.ID)
		if err != nil {
			return err
		}
		questions, err := s.Questions.FindByIDs(questionIDs)
		if err != nil {
			return err
		}
		if err := s.Progress.ApplyCompletedSession(session, answers, questions); err != nil {
			logger.Log.Error("aggregation retry failed", zap.String("sessionId", session.ID), zap.Error(err))
			continue
		}
		monitoring.AggregationRetries.Inc()
	}
	return nil
}
