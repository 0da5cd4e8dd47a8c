package match

import "errors"

// Kind agrupa os erros de domínio retornados aos clientes.
type Kind string

const (
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	KindInvalidState     Kind = "INVALID_STATE"
	KindInvalidBet       Kind = "INVALID_BET"
	KindSlotTaken        Kind = "SLOT_TAKEN"
	KindNotFound         Kind = "NOT_FOUND"
	KindInvalidInput     Kind = "INVALID_INPUT"
	KindDeliveryGap      Kind = "TRANSIENT_DELIVERY_GAP"
	KindUnavailable      Kind = "UNAVAILABLE"
)

// Error é um erro de domínio com motivo legível.
// Um Error sem Code representa a família inteira do Kind.
type Error struct {
	Kind   Kind
	Code   string
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

func newError(kind Kind, code, reason string) *Error {
	return &Error{Kind: kind, Code: code, Reason: reason}
}

// famílias
var (
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied, Reason: "permission denied"}
	ErrInvalidState     = &Error{Kind: KindInvalidState, Reason: "invalid state"}
	ErrInvalidBet       = &Error{Kind: KindInvalidBet, Reason: "invalid bet"}
	ErrNotFound         = &Error{Kind: KindNotFound, Reason: "match not found"}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput, Reason: "invalid input"}
	ErrUnavailable      = &Error{Kind: KindUnavailable, Reason: "arena temporarily unavailable, try again"}
)

var (
	ErrInvalidStake = newError(KindInvalidBet, "INVALID_STAKE", "stake must be a whole number between 1 and 1000000000")
	ErrInvalidSide  = newError(KindInvalidBet, "INVALID_SIDE", "that side has no participant to bet on")
	ErrMatchClosed  = newError(KindInvalidBet, "MATCH_CLOSED", "betting closed: match already decided")

	ErrSlotTaken = newError(KindSlotTaken, "SLOT_TAKEN", "challenger slot already filled")

	ErrTransientDeliveryGap = newError(KindDeliveryGap, "RESYNC_REQUIRED", "live updates were interrupted, resynchronizing")

	ErrNotModerator      = newError(KindPermissionDenied, "NOT_MODERATOR", "only the match moderator can do that")
	ErrNotAuthenticated  = newError(KindPermissionDenied, "NOT_AUTHENTICATED", "sign in to do that")
	ErrSelfChallenge     = newError(KindPermissionDenied, "SELF_CHALLENGE", "you cannot challenge your own match")
	ErrNotParticipant    = newError(KindPermissionDenied, "NOT_PARTICIPANT", "only participants and the moderator can use the mic")
	ErrChallengerMissing = newError(KindInvalidState, "CHALLENGER_MISSING", "match cannot go live without a challenger")
	ErrFinishViaWinner   = newError(KindInvalidState, "FINISH_VIA_WINNER", "declare a winner (or no contest) to finish the match")
	ErrWinnerNotAllowed  = newError(KindInvalidState, "WINNER_NOT_ALLOWED", "a winner can only be declared while the match is live or voting")
	ErrJoinClosed        = newError(KindInvalidState, "JOIN_CLOSED", "the match is no longer accepting challengers")
	ErrInvalidWinner     = newError(KindInvalidInput, "INVALID_WINNER", "winner must be one of the two participants")
	ErrEmptyMessage      = newError(KindInvalidInput, "EMPTY_MESSAGE", "message cannot be empty")
	ErrMessageTooLong    = newError(KindInvalidInput, "MESSAGE_TOO_LONG", "message is too long")
)

// KindOf retorna o Kind de um erro de domínio, ou "" se for erro de infraestrutura.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsDomain informa se o erro é uma rejeição de validação (não deve ser re-tentado).
func IsDomain(err error) bool { return KindOf(err) != "" }
