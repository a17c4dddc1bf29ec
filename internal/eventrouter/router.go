// Package eventrouter is the thin layer between adapters and sessions: it
// resolves which client session a batch of native-derived conversions
// belongs to, via the Supervisor's session mapping, and forwards them to
// that Session's append path.
package eventrouter

import (
	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/logging"
	"github.com/kandev/agentd/internal/session"
	"github.com/kandev/agentd/internal/universal"
)

// SessionLookup resolves a client session id to its Session runtime.
type SessionLookup interface {
	Get(id string) (*session.Session, error)
}

// NativeLookup resolves a native session id to a client session id, scoped
// to one agent. Implemented by *supervisor.AgentServer in production wiring.
type NativeLookup interface {
	ClientIDForNative(nativeID string) (string, bool)
}

// Router funnels adapter conversions into the right session's event log.
type Router struct {
	sessions SessionLookup
	log      *logging.Logger
}

func New(sessions SessionLookup, log *logging.Logger) *Router {
	return &Router{sessions: sessions, log: log}
}

// Route delivers one batch of conversions — everything a single
// adapter.Translate() call produced from one native read — to the client
// session bound to nativeSessionID under agent. If no session is
// currently registered for that native id (the native event predates
// registration, or arrived after unregistration), the batch is dropped and
// logged at debug, per spec §4.4.
func (r *Router) Route(native NativeLookup, agent universal.AgentID, nativeSessionID string, conversions []adapters.EventConversion) {
	if len(conversions) == 0 {
		return
	}

	clientID, ok := native.ClientIDForNative(nativeSessionID)
	if !ok {
		if r.log != nil {
			r.log.WithAgent(string(agent)).Debug("dropping conversions for unregistered native session")
		}
		return
	}

	sess, err := r.sessions.Get(clientID)
	if err != nil {
		if r.log != nil {
			r.log.WithAgent(string(agent)).WithSession(clientID).Debug("dropping conversions for unknown session")
		}
		return
	}

	sess.AppendConversions(conversions)
}
