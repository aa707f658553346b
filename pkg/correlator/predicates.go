package correlator

import (
	"github.com/papercomputeco/neolink/pkg/neo"
)

// ChatCreated matches the acknowledgement for chatID. Any protocol error
// frame fails the wait.
func ChatCreated(chatID string) Predicate {
	return func(f neo.Frame) (bool, error) {
		switch f.Kind {
		case neo.KindProtocolError:
			return false, &neo.ProtocolError{Detail: f.Detail}
		case neo.KindChatCreated:
			return f.Chat != nil && f.Chat.ChatID == chatID, nil
		default:
			return false, nil
		}
	}
}

// ReplyWatcher tracks the character's reply for one session. Partial text is
// kept so a timed-out wait can still return the best text seen.
type ReplyWatcher struct {
	sessionID string
	latest    string
}

// NewReplyWatcher returns a watcher for sessionID.
func NewReplyWatcher(sessionID string) *ReplyWatcher {
	return &ReplyWatcher{sessionID: sessionID}
}

// Match is a Predicate. It ends the wait on the first final candidate with
// text, or on a protocol error.
func (w *ReplyWatcher) Match(f neo.Frame) (bool, error) {
	switch f.Kind {
	case neo.KindProtocolError:
		return false, &neo.ProtocolError{Detail: f.Detail}
	case neo.KindTurnUpdate:
	default:
		return false, nil
	}

	turn := f.Turn
	if turn == nil || turn.Author.IsHuman() {
		return false, nil
	}
	if id := turn.TurnKey.ChatID; id != "" && w.sessionID != "" && id != w.sessionID {
		return false, nil
	}

	cand, ok := turn.Primary()
	if !ok || cand.RawContent == "" {
		return false, nil
	}

	w.latest = cand.RawContent
	return cand.IsFinal, nil
}

// Latest is the most recent non-empty character text seen.
func (w *ReplyWatcher) Latest() (string, bool) {
	return w.latest, w.latest != ""
}
