package balance

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

var supportedLocales = []language.Tag{
	language.English,
	language.Indonesian,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// FormatError renders a balance error as a user-facing string in the closest
// supported locale. Anything unrecognized falls back to English.
func FormatError(locale string, e *domain.InsufficientBalanceError) string {
	tag, _ := language.MatchStrings(localeMatcher, locale)
	base, _ := tag.Base()

	shortfall := e.Cost - e.AvailableCredits
	if shortfall < 0 {
		shortfall = 0
	}

	if base.String() == "id" {
		switch e.Type {
		case domain.BalanceErrorPaymentRequired:
			return fmt.Sprintf("Pembayaran diperlukan: operasi ini membutuhkan %d kredit.", e.Cost)
		case domain.BalanceErrorQuotaExceeded:
			return "Kuota penggunaan Anda telah habis."
		default:
			return fmt.Sprintf("Saldo tidak mencukupi: butuh %d kredit, tersedia %d (kurang %d).", e.Cost, e.AvailableCredits, shortfall)
		}
	}

	switch e.Type {
	case domain.BalanceErrorPaymentRequired:
		return fmt.Sprintf("Payment required: this operation costs %d credits.", e.Cost)
	case domain.BalanceErrorQuotaExceeded:
		return "Your usage quota has been exceeded."
	default:
		return fmt.Sprintf("Insufficient balance: need %d credits, have %d (short by %d).", e.Cost, e.AvailableCredits, shortfall)
	}
}
