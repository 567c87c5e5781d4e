package service

import (
	"certprep_backend/internal/model"
	"certprep_backend/internal/repository"
	"certprep_backend/internal/util"
)

// RecentSessionView 首页最近会话条目
type RecentSessionView struct {
	ID             string     `json:"id"`
	SessionName    string     `json:"sessionName"`
	Status         model.SessionStatus `json:"status"`
	TotalQuestions int        `json:"totalQuestions"`
	Percentage     *float64   `json:"percentage,omitempty"`
	StartedAt      string     `json:"startedAt"`
}

// DashboardData 学员首页汇总数据
type DashboardData struct {
	TestsTaken        int                  `json:"testsTaken"`
	AverageScore      float64              `json:"averageScore"`
	BestScore         float64              `json:"bestScore"`
	CategoriesStudied int                  `json:"categoriesStudied"`
	RecentSessions    []RecentSessionView  `json:"recentSessions"`
	Progress          []model.UserProgress `json:"progress"`
}

// DashboardService 汇总用户的练习概况
type DashboardService struct {
	UserRepo     *repository.UserRepository
	SessionRepo  *repository.SessionRepository
	ProgressRepo *repository.ProgressRepository
}

func NewDashboardService(userRepo *repository.UserRepository, sessionRepo *repository.SessionRepository, progressRepo *repository.ProgressRepository) *DashboardService {
	return &DashboardService{
		UserRepo:     userRepo,
		SessionRepo:  sessionRepo,
		ProgressRepo: progressRepo,
	}
}

func (s *DashboardService) GetDashboard(userID uint) (*DashboardData, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, util.ErrUserNotFound
	}

	sessions, err := s.SessionRepo.ListByUser(userID, 0, 5)
	if err != nil {
		return nil, err
	}

	progress, err := s.ProgressRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	best, err := s.SessionRepo.BestPercentage(userID)
	if err != nil {
		return nil, err
	}

	data := &DashboardData{
		TestsTaken:        user.TotalTestsTaken,
		AverageScore:      user.AverageScore,
		BestScore:         best,
		CategoriesStudied: len(progress),
		Progress:          progress,
		RecentSessions:    make([]RecentSessionView, 0, len(sessions)),
	}

	for _, sess := range sessions {
		view := RecentSessionView{
			ID:             sess.ID,
			SessionName:    sess.SessionName,
			Status:         sess.Status,
			TotalQuestions: sess.TotalQuestions,
			StartedAt:      sess.StartedAt.Format(util.TimeFormat),
		}
		if sess.IsCompleted {
			pct := sess.Percentage
			view.Percentage = &pct
		}
		data.RecentSessions = append(data.RecentSessions, view)
	}

	return data, nil
}
