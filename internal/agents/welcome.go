package agents

import (
	"context"

	"phoneai_backend/internal/handoff"
	"phoneai_backend/internal/toolkit"
)

type currentTimeInput struct{}

type currentTime struct {
	CurrentTime string `json:"current_time"`
	Period      string `json:"period"`
	Date        string `json:"date"`
}

func (o *Operations) registerWelcome(reg *toolkit.Registry) error {
	return toolkit.Register(reg, handoff.Welcome, "get_current_time", "Récupère l'heure actuelle pour adapter le salut.", o.getCurrentTime)
}

func (o *Operations) getCurrentTime(ctx context.Context, call *toolkit.Call, _ currentTimeInput) (toolkit.Result, error) {
	now := o.now()
	period := "soir"
	switch h := now.Hour(); {
	case h >= 6 && h < 12:
		period = "matin"
	case h >= 12 && h < 18:
		period = "après-midi"
	}
	return toolkit.Result{Data: currentTime{
		CurrentTime: now.Format("15:04"),
		Period:      period,
		Date:        now.Format("02/01/2006"),
	}}, nil
}
