package hub

import (
	"encoding/json"
	"log/slog"
	"time"
)

const (
	errSelfCall     = "Cannot call yourself"
	errNotConnected = "Receiver not connected"
)

// Relay forwards call-setup messages (offer, answer, ICE candidate) between
// exactly two parties. It keeps no call state: every message is validated and
// relayed independently.
//
// Error reporting is deliberately asymmetric for compatibility with existing
// clients: a failed or self-targeted offer produces a call:error back to the
// sender, while failed or self-targeted answers and candidates are dropped
// silently.
type Relay struct {
	router *Router
	log    *slog.Logger
	now    func() time.Time
}

func NewRelay(router *Router, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{router: router, log: log, now: time.Now}
}

func (r *Relay) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

// RelayOffer forwards a call offer to the receiver. A self-targeted offer or
// an unreachable receiver is reported to the sender via call:error; nothing
// else is delivered in those cases.
func (r *Relay) RelayOffer(senderID, callID, receiverID string, offer json.RawMessage) {
	if receiverID == senderID {
		r.router.SendToUser(senderID, EventCallError, CallError{CallID: callID, Error: errSelfCall})
		return
	}
	delivered := r.router.SendToUser(receiverID, EventCallOffer, OfferNotice{
		CallID:    callID,
		CallerID:  senderID,
		Offer:     offer,
		Timestamp: r.timestamp(),
	})
	if !delivered {
		r.router.SendToUser(senderID, EventCallError, CallError{CallID: callID, Error: errNotConnected})
	}
}

// RelayAnswer forwards a call answer to the caller. Self-targeted answers and
// unreachable callers are dropped without notifying the sender.
func (r *Relay) RelayAnswer(senderID, callID, callerID string, answer json.RawMessage) {
	if callerID == senderID {
		return
	}
	if !r.router.SendToUser(callerID, EventCallAnswer, AnswerNotice{
		CallID:    callID,
		Answer:    answer,
		Timestamp: r.timestamp(),
	}) {
		r.log.Debug("answer dropped, caller not connected", "call_id", callID, "caller_id", callerID)
	}
}

// RelayICECandidate forwards an ICE candidate to the target peer. Same silent
// failure policy as RelayAnswer.
func (r *Relay) RelayICECandidate(senderID, callID, targetUserID string, candidate json.RawMessage) {
	if targetUserID == senderID {
		return
	}
	if !r.router.SendToUser(targetUserID, EventCallCandidate, CandidateNotice{
		CallID:    callID,
		Candidate: candidate,
		Timestamp: r.timestamp(),
	}) {
		r.log.Debug("candidate dropped, target not connected", "call_id", callID, "target_id", targetUserID)
	}
}
