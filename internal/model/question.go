package model

type QuestionType string

const (
	SingleChoice     QuestionType = "single_choice"
	PerformanceBased QuestionType = "performance_based"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Question 题目，属于一个分类。single_choice 题必须有且仅有一个正确选项；
// performance_based 题由注入的 AnswerMatcher 依据 AnswerText 判定。
// swagger:model Question
type Question struct {
	BaseModel
	CategoryID       uint             `gorm:"index;type:bigint unsigned;not null" json:"categoryId"`
	Category         *Category        `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Type             QuestionType     `gorm:"type:enum('single_choice','performance_based');default:'single_choice'" json:"type"`
	QuestionText     string           `gorm:"type:text;not null" json:"questionText"`
	Explanation      string           `gorm:"type:text" json:"explanation,omitempty"`
	ImageURL         *string          `gorm:"size:255" json:"imageUrl,omitempty"`
	Difficulty       Difficulty       `gorm:"type:enum('easy','medium','hard');default:'medium'" json:"difficulty"`
	Points           int              `gorm:"default:10" json:"points"`
	TimeLimitSeconds int              `gorm:"default:60" json:"timeLimitSeconds"` // 单题建议用时
	AnswerText       string           `gorm:"type:text" json:"-"`                 // performance_based 的判定依据
	IsActive         bool             `gorm:"default:true" json:"isActive"`
	Options          []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOption 返回标记为正确的选项，单选题约定恰好存在一个
func (q *Question) CorrectOption() *QuestionOption {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// swagger:model QuestionOption
type QuestionOption struct {
	BaseModel
	QuestionID  uint    `gorm:"index;type:bigint unsigned;not null" json:"questionId"`
	OptionText  string  `gorm:"type:text;not null" json:"optionText"`
	IsCorrect   bool    `gorm:"default:false" json:"-"`
	Explanation *string `gorm:"type:text" json:"explanation,omitempty"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
