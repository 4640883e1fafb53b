package escala

import (
	"context"

	"github.com/escala-app/escala/eventbus"
	"github.com/escala-app/escala/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// auditor logs and counts sign-ins and sign-outs.
type auditor struct {
	events *prometheus.CounterVec
}

func newAuditor(reg prometheus.Registerer) *auditor {
	a := &auditor{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escala_session_events_total",
			Help: "Session transitions by topic.",
		}, []string{"topic"}),
	}
	reg.MustRegister(a.events)
	return a
}

func (a *auditor) subscribe(bus eventbus.EventBus) {
	bus.Subscribe(eventbus.LoginEvent, a.handle)
	bus.Subscribe(eventbus.LogoutEvent, a.handle)
}

func (a *auditor) handle(ctx context.Context, msg *eventbus.Message) error {
	a.events.WithLabelValues(msg.Topic).Inc()

	ev, _ := msg.Data.(eventbus.AuthEvent)
	logging.Infow(ctx, "audit: "+msg.Topic,
		"session.subject", ev.SubjectID,
		"session.email", ev.Email,
		"session.roles", ev.Roles)
	return nil
}
