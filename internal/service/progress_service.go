package service

import (
	"certprep_backend/internal/model"
	"certprep_backend/internal/repository"
	"certprep_backend/internal/util"
	"certprep_backend/pkg/logger"
	"sort"

	"go.uber.org/zap"
)

// ProgressStore 进度统计的持久化边界
type ProgressStore interface {
	// InTx 在单个事务内执行一次完整的折算，部分失败整体回滚
	InTx(fn func(tx repository.ProgressTx) error) error
	ListByUser(userID uint) ([]model.UserProgress, error)
}

// ProgressService 进度聚合器。把已完成会话的逐题结果折算进
// 每个分类的累计统计和学习者的全局档案。更新是 O(1) 的加权滚动均值，
// 与历史会话数量无关；增量可交换可结合，多个会话以任意顺序完成，
// 最终聚合结果一致。
type ProgressService struct {
	Store ProgressStore
	Clock Clock
}

func NewProgressService(store ProgressStore, clock Clock) *ProgressService {
	if clock == nil {
		clock = SystemClock
	}
	return &ProgressService{Store: store, Clock: clock}
}

// ApplyCompletedSession 把一个已完成会话折算进进度统计。
// 只处理 completed 的会话；被放弃的会话永远不会到达这里。
// 以 progress_applied 为事务内的领取标记，并发重复调用只生效一次。
// 完成时未作答的题目计入 attempted、不计入 correct。
func (s *ProgressService) ApplyCompletedSession(session *model.TestSession, answers []model.AnswerRecord, questions []model.Question) error {
	if !session.IsCompleted {
		return util.ErrSessionCompleted
	}

	answerByQuestion := make(map[uint]*model.AnswerRecord, len(answers))
	for i := range answers {
		answerByQuestion[answers[i].QuestionID] = &answers[i]
	}

	// 按分类切分会话内的题目
	type categorySlice struct {
		total   int
		correct int
	}
	byCategory := make(map[uint]*categorySlice)
	for _, q := range questions {
		cs := byCategory[q.CategoryID]
		if cs == nil {
			cs = &categorySlice{}
			byCategory[q.CategoryID] = cs
		}
		cs.total++
		if rec, ok := answerByQuestion[q.ID]; ok && rec.IsCorrect {
			cs.correct++
		}
	}

	categoryIDs := make([]uint, 0, len(byCategory))
	for id := range byCategory {
		categoryIDs = append(categoryIDs, id)
	}
	sort.Slice(categoryIDs, func(i, j int) bool { return categoryIDs[i] < categoryIDs[j] })

	now := s.Clock.Now()

	return s.Store.InTx(func(tx repository.ProgressTx) error {
		claimed, err := tx.ClaimSession(session.ID)
		if err != nil {
			return err
		}
		if !claimed {
			// 已被处理过（并发完成或对账任务抢先），幂等返回
			logger.Log.Debug("session already aggregated", zap.String("sessionId", session.ID))
			return nil
		}

		// 旧的全局权重要在更新任何分类行之前读出
		oldTotal, err := tx.TotalAttempted(session.UserID)
		if err != nil {
			return err
		}
		oldAverage, err := tx.ProfileAverage(session.UserID)
		if err != nil {
			return err
		}

		for _, categoryID := range categoryIDs {
			cs := byCategory[categoryID]
			progress, err := tx.LoadOrCreate(session.UserID, categoryID, now)
			if err != nil {
				return err
			}

			subsetPct := 100 * float64(cs.correct) / float64(cs.total)
			progress.AverageScore = util.Round2(rollingMean(
				progress.AverageScore, progress.QuestionsAttempted,
				subsetPct, cs.total,
			))
			progress.QuestionsAttempted += cs.total
			progress.QuestionsCorrect += cs.correct
			progress.LastStudiedAt = now

			if err := tx.Save(progress); err != nil {
				return err
			}
		}

		newGlobal := util.Round2(rollingMean(oldAverage, oldTotal, session.Percentage, len(questions)))
		return tx.UpdateProfileAggregates(session.UserID, newGlobal)
	})
}

// rollingMean 加权滚动均值：new = (oldAvg*oldN + value*n) / (oldN + n)
func rollingMean(oldAvg float64, oldN int, value float64, n int) float64 {
	if oldN+n == 0 {
		return 0
	}
	return (oldAvg*float64(oldN) + value*float64(n)) / float64(oldN+n)
}

// ListByUser 每个分类一行的进度列表，供仪表盘读取
func (s *ProgressService) ListByUser(userID uint) ([]model.UserProgress, error) {
	return s.Store.ListByUser(userID)
}
