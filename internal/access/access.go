package access

import (
	"github.com/nantokaworks/telegram-gatebot/internal/shared/logger"
	"github.com/nantokaworks/telegram-gatebot/internal/telegramapi"
	"go.uber.org/zap"
)

// MembershipChecker answers channel membership queries. Implemented by
// telegramapi.Client.
type MembershipChecker interface {
	GetMembership(channel string, userID int64) (telegramapi.Membership, error)
}

// Gate decides whether a user currently satisfies the channel membership
// requirement. It is stateless; one call, one answer.
type Gate struct {
	checker MembershipChecker
	channel string
}

func NewGate(checker MembershipChecker, channel string) *Gate {
	return &Gate{checker: checker, channel: channel}
}

// CheckAccess reports whether the user is a member of the required channel.
// Ambiguous transport answers never grant: granted is false on any error,
// and the error is returned so the caller can tell the user the check
// itself failed rather than pretending they are not subscribed.
func (g *Gate) CheckAccess(userID int64) (bool, error) {
	membership, err := g.checker.GetMembership(g.channel, userID)
	if err != nil {
		logger.Warn("Membership check failed, denying access",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return false, err
	}
	return membership == telegramapi.MembershipMember, nil
}
