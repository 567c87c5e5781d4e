package service

import "time"

// Clock 注入式时钟，超时判定和测试都依赖它
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var SystemClock Clock = systemClock{}
