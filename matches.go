package main

import (
	"context"
	"time"
)

// MatchService exposes the public engine operations (discover, send, respond,
// block, queries) and is the only component that asks the MatchStore for
// transitions. Events fire here, post-commit, exactly once per terminal
// transition.
type MatchService struct {
	cfg      *Config
	profiles ProfileStore
	matches  MatchStore
	events   *EventHub
	now      func() time.Time
}

func newMatchService(cfg *Config, profiles ProfileStore, matches MatchStore, events *EventHub) *MatchService {
	return &MatchService{
		cfg:      cfg,
		profiles: profiles,
		matches:  matches,
		events:   events,
		now:      time.Now,
	}
}

func validateUserIDs(ids ...int) error {
	for _, id := range ids {
		if id <= 0 {
			return invalidInput("user id %d", id)
		}
	}
	return nil
}

// Send creates the pending half of a match from requester to candidate.
//
// State rules:
//   - no record        -> pending, initiator = requester, score snapshotted
//   - pending, same direction  -> idempotent no-op
//   - pending, crossing        -> mutual when reciprocal_accept is on,
//     otherwise the existing record is returned untouched
//   - mutual/declined  -> idempotent no-op (terminal states never re-open)
//   - blocked          -> explicit not_eligible failure
func (s *MatchService) Send(ctx context.Context, requesterID, candidateID int) (*MatchRecord, error) {
	if err := validateUserIDs(requesterID, candidateID); err != nil {
		return nil, err
	}
	if requesterID == candidateID {
		return nil, notEligible("self_match")
	}

	req, err := s.profiles.Snapshot(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	cand, err := s.profiles.Snapshot(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if !cand.Profile.Verified || !cand.Profile.Visible {
		return nil, notEligible("unverified_profile")
	}
	if err := validatePreferences(req.Prefs); err != nil {
		return nil, err
	}

	score := scoreCandidate(&s.cfg.Matching, s.now(), req.Profile, req.Prefs, cand.Profile)

	var prev MatchState
	rec, err := s.matches.Transition(ctx, requesterID, candidateID, func(cur *MatchRecord) (*MatchRecord, error) {
		if cur == nil {
			return &MatchRecord{
				State:       StatePending,
				InitiatorID: requesterID,
				ScoreAtSend: score.Score,
			}, nil
		}
		prev = cur.State
		switch cur.State {
		case StatePending:
			if cur.InitiatorID == requesterID {
				return nil, nil // re-send, idempotent
			}
			// Crossing requests: the other side already sent to us.
			if s.cfg.Matching.ReciprocalAccept {
				cur.State = StateMutual
				return cur, nil
			}
			return nil, nil
		case StateBlocked:
			return nil, notEligible("blocked_pair")
		default:
			return nil, nil // mutual/declined, idempotent
		}
	})
	if err != nil {
		return nil, err
	}
	s.emitIfTerminal(prev, rec)
	return rec, nil
}

// Respond settles a pending request: the responder (who must not be the
// initiator) accepts into mutual or declines into declined.
func (s *MatchService) Respond(ctx context.Context, responderID, initiatorID int, accept bool) (*MatchRecord, error) {
	if err := validateUserIDs(responderID, initiatorID); err != nil {
		return nil, err
	}
	if responderID == initiatorID {
		return nil, invalidTransition("responder_is_initiator")
	}

	var prev MatchState
	rec, err := s.matches.Transition(ctx, responderID, initiatorID, func(cur *MatchRecord) (*MatchRecord, error) {
		if cur == nil {
			return nil, invalidTransition("no_pending_request")
		}
		prev = cur.State
		if cur.State != StatePending {
			return nil, invalidTransition("not_pending")
		}
		if cur.InitiatorID == responderID {
			return nil, invalidTransition("responder_is_initiator")
		}
		if cur.InitiatorID != initiatorID {
			return nil, invalidTransition("wrong_initiator")
		}
		if accept {
			cur.State = StateMutual
		} else {
			cur.State = StateDeclined
		}
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	s.emitIfTerminal(prev, rec)
	return rec, nil
}

// Block moves the pair to blocked from any state, creating the record if
// none exists. Blocking always wins; a blocked pair never transitions again.
func (s *MatchService) Block(ctx context.Context, actorID, targetID int) (*MatchRecord, error) {
	if err := validateUserIDs(actorID, targetID); err != nil {
		return nil, err
	}
	if actorID == targetID {
		return nil, notEligible("self_match")
	}

	var prev MatchState
	rec, err := s.matches.Transition(ctx, actorID, targetID, func(cur *MatchRecord) (*MatchRecord, error) {
		if cur == nil {
			return &MatchRecord{State: StateBlocked, InitiatorID: actorID}, nil
		}
		prev = cur.State
		if cur.State == StateBlocked {
			return nil, nil // idempotent, no second event
		}
		cur.State = StateBlocked
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	s.emitIfTerminal(prev, rec)
	return rec, nil
}

// GetMatch returns the record for a pair, or errNotFound.
func (s *MatchService) GetMatch(ctx context.Context, a, b int) (*MatchRecord, error) {
	if err := validateUserIDs(a, b); err != nil {
		return nil, err
	}
	rec, err := s.matches.Get(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errNotFound
	}
	return rec, nil
}

// ListMutual returns the user's mutual matches, newest first.
func (s *MatchService) ListMutual(ctx context.Context, userID int) ([]*MatchRecord, error) {
	if err := validateUserIDs(userID); err != nil {
		return nil, err
	}
	return s.matches.ListByState(ctx, userID, StateMutual)
}

// ListIncoming returns pending requests awaiting the user's response.
func (s *MatchService) ListIncoming(ctx context.Context, userID int) ([]*MatchRecord, error) {
	if err := validateUserIDs(userID); err != nil {
		return nil, err
	}
	return s.matches.ListIncoming(ctx, userID)
}

// Ping records user activity; feeds the ranker's activity boost.
func (s *MatchService) Ping(ctx context.Context, userID int) error {
	if err := validateUserIDs(userID); err != nil {
		return err
	}
	return s.profiles.Touch(ctx, userID, s.now())
}

// emitIfTerminal publishes the pair's terminal event once: only when this
// transition actually changed the state.
func (s *MatchService) emitIfTerminal(prev MatchState, rec *MatchRecord) {
	if s.events == nil || rec == nil {
		return
	}
	if !rec.State.Terminal() || rec.State == prev {
		return
	}
	s.events.Publish(newMatchEvent(rec, s.now()))
}
