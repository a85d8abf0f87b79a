package domain

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"

	"instantsend-core/pkg/apperror"
)

// RedeemLink carries everything the redemption flow needs to recover from a
// shared link: the one-time secret, the sender's public key for context, and
// the asset symbol.
type RedeemLink struct {
	Secret string
	Sender solana.PublicKey
	Symbol string
}

// BuildRedeemLink formats the shareable redemption link:
// <base>?startapp=<secret>_<senderPublicKey>_<tokenSymbol>.
func BuildRedeemLink(baseURL, secret string, sender solana.PublicKey, symbol string) string {
	return fmt.Sprintf("%s?startapp=%s_%s_%s", baseURL, secret, sender.String(), symbol)
}

// ParseRedeemLink recovers a RedeemLink from either a full share URL or the
// bare startapp payload.
func ParseRedeemLink(raw string) (RedeemLink, error) {
	payload := raw
	if strings.Contains(raw, "?") {
		u, err := url.Parse(raw)
		if err != nil {
			return RedeemLink{}, apperror.Wrap(apperror.KindInvalidParameters, "malformed redeem link", err)
		}
		payload = u.Query().Get("startapp")
		if payload == "" {
			return RedeemLink{}, apperror.ErrInvalidParameters("redeem link has no startapp parameter")
		}
	}

	parts := strings.SplitN(payload, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return RedeemLink{}, apperror.ErrInvalidParameters("startapp payload must be <secret>_<sender>_<symbol>")
	}

	sender, err := solana.PublicKeyFromBase58(parts[1])
	if err != nil {
		return RedeemLink{}, apperror.Wrap(apperror.KindInvalidParameters, "invalid sender public key in redeem link", err)
	}

	return RedeemLink{Secret: parts[0], Sender: sender, Symbol: parts[2]}, nil
}
