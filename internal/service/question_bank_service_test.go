package service

import (
	"context"
	"errors"
	"testing"

	"certprep_backend/internal/model"
	"certprep_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCategoryStore struct {
	categories []model.Category
	listCalls  int
}

func (f *fakeCategoryStore) ListOrdered() ([]model.Category, error) {
	f.listCalls++
	return f.categories, nil
}

func (f *fakeCategoryStore) FindByIDs(ids []uint) ([]model.Category, error) {
	var out []model.Category
	for _, c := range f.categories {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type fakeQuestionStore struct {
	questions []model.Question
}

func (f *fakeQuestionStore) FindActiveByCategoryIDs(categoryIDs []uint) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if !q.IsActive {
			continue
		}
		for _, id := range categoryIDs {
			if q.CategoryID == id {
				out = append(out, q)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) FindByIDs(ids []uint) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		for _, id := range ids {
			if q.ID == id {
				out = append(out, q)
				break
			}
		}
	}
	return out, nil
}

func bankQuestions(categoryID uint, n int) []model.Question {
	out := make([]model.Question, n)
	for i := 0; i < n; i++ {
		out[i] = model.Question{
			BaseModel:  model.BaseModel{ID: uint(i + 1)},
			CategoryID: categoryID,
			Type:       model.SingleChoice,
			Points:     10,
			IsActive:   true,
		}
	}
	return out
}

func TestListCategories_NoCache(t *testing.T) {
	cats := &fakeCategoryStore{categories: []model.Category{
		{BaseModel: model.BaseModel{ID: 1}, Name: "Cryptography"},
		{BaseModel: model.BaseModel{ID: 2}, Name: "IAM"},
	}}
	bank := NewQuestionBankService(cats, &fakeQuestionStore{}, nil, 0)

	got, err := bank.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Cryptography", got[0].Name)
	assert.Equal(t, 1, cats.listCalls)
}

func TestSelectQuestions_DeterministicForSeed(t *testing.T) {
	qs := &fakeQuestionStore{questions: bankQuestions(1, 30)}
	bank := NewQuestionBankService(&fakeCategoryStore{}, qs, nil, 0)

	first, partial, err := bank.SelectQuestions([]uint{1}, 10, 424242)
	require.NoError(t, err)
	assert.False(t, partial)
	require.Len(t, first, 10)

	second, _, err := bank.SelectQuestions([]uint{1}, 10, 424242)
	require.NoError(t, err)
	require.Len(t, second, 10)

	// 同一种子必须得到同一顺序
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}

	third, _, err := bank.SelectQuestions([]uint{1}, 10, 424243)
	require.NoError(t, err)
	different := false
	for i := range first {
		if first[i].ID != third[i].ID {
			different = true
			break
		}
	}
	assert.True(t, different, "a different seed should give a different order")
}

func TestSelectQuestions_Shortfall(t *testing.T) {
	qs := &fakeQuestionStore{questions: bankQuestions(1, 4)}
	bank := NewQuestionBankService(&fakeCategoryStore{}, qs, nil, 0)

	got, partial, err := bank.SelectQuestions([]uint{1}, 10, 1)
	require.NoError(t, err)
	assert.True(t, partial)
	assert.Len(t, got, 4)
}

func TestSelectQuestions_EmptyPool(t *testing.T) {
	inactive := bankQuestions(1, 3)
	for i := range inactive {
		inactive[i].IsActive = false
	}
	qs := &fakeQuestionStore{questions: inactive}
	bank := NewQuestionBankService(&fakeCategoryStore{}, qs, nil, 0)

	_, _, err := bank.SelectQuestions([]uint{1}, 5, 1)
	assert.True(t, errors.Is(err, util.ErrEmptyPool))
}

func TestSelectQuestions_InvalidArgs(t *testing.T) {
	bank := NewQuestionBankService(&fakeCategoryStore{}, &fakeQuestionStore{}, nil, 0)

	_, _, err := bank.SelectQuestions(nil, 5, 1)
	assert.True(t, errors.Is(err, util.ErrInvalidConfig))

	_, _, err = bank.SelectQuestions([]uint{1}, 0, 1)
	assert.True(t, errors.Is(err, util.ErrInvalidConfig))
}

func TestSelectQuestions_ExcludesOtherCategories(t *testing.T) {
	questions := append(bankQuestions(1, 5), model.Question{
		BaseModel:  model.BaseModel{ID: 99},
		CategoryID: 2,
		IsActive:   true,
	})
	qs := &fakeQuestionStore{questions: questions}
	bank := NewQuestionBankService(&fakeCategoryStore{}, qs, nil, 0)

	got, _, err := bank.SelectQuestions([]uint{1}, 5, 7)
	require.NoError(t, err)
	for _, q := range got {
		assert.Equal(t, uint(1), q.CategoryID)
	}
}
