package service

import (
	"certprep_backend/internal/model"
	"certprep_backend/internal/util"
	"certprep_backend/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const categoryCacheKey = "certprep:categories"

// CategoryStore 分类只读访问
type CategoryStore interface {
	ListOrdered() ([]model.Category, error)
	FindByIDs(ids []uint) ([]model.Category, error)
}

// QuestionStore 题目只读访问
type QuestionStore interface {
	FindActiveByCategoryIDs(categoryIDs []uint) ([]model.Question, error)
	FindByIDs(ids []uint) ([]model.Question, error)
}

// QuestionBankService 题库访问器：分类列表和抽题。
// 分类是参考数据，用 Redis 做 cache-aside；抽题用种子驱动的伪随机序，
// 同一种子结果相同，顺序在会话创建时被冻结。
type QuestionBankService struct {
	Categories CategoryStore
	Questions  QuestionStore
	Redis      *redis.Client // 可为空，为空时直接查库
	CacheTTL   time.Duration
}

func NewQuestionBankService(categories CategoryStore, questions QuestionStore, rdb *redis.Client, cacheTTL time.Duration) *QuestionBankService {
	return &QuestionBankService{
		Categories: categories,
		Questions:  questions,
		Redis:      rdb,
		CacheTTL:   cacheTTL,
	}
}

// ListCategories 按名称字母序返回所有分类
func (s *QuestionBankService) ListCategories(ctx context.Context) ([]model.Category, error) {
	if s.Redis != nil {
		val, err := s.Redis.Get(ctx, categoryCacheKey).Result()
		if err == nil {
			var cached []model.Category
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			logger.Log.Warn("category cache read failed", zap.Error(err))
		}
	}

	categories, err := s.Categories.ListOrdered()
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if data, err := json.Marshal(categories); err == nil {
			if err := s.Redis.Set(ctx, categoryCacheKey, data, s.CacheTTL).Err(); err != nil {
				logger.Log.Warn("category cache write failed", zap.Error(err))
			}
		}
	}

	return categories, nil
}

// SelectQuestions 从指定分类的启用题目里抽 count 道。
// 返回的 partial 为 true 表示题库不足、返回数少于请求数，调用方必须感知，
// 不做静默截断。候选池为空时返回 ErrEmptyPool。
func (s *QuestionBankService) SelectQuestions(categoryIDs []uint, count int, seed int64) ([]model.Question, bool, error) {
	if len(categoryIDs) == 0 || count <= 0 {
		return nil, false, util.ErrInvalidConfig
	}

	pool, err := s.Questions.FindActiveByCategoryIDs(categoryIDs)
	if err != nil {
		return nil, false, err
	}
	if len(pool) == 0 {
		return nil, false, fmt.Errorf("%w: categories %v", util.ErrEmptyPool, categoryIDs)
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	if len(pool) < count {
		return pool, true, nil
	}
	return pool[:count], false, nil
}
