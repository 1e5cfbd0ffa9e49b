package swapengine

import (
	"fmt"

	swaperr "github.com/aman-zulfiqar/intentswap/internal/errors"
)

// summarize states what happened, whether funds moved and whether a retry
// (a fresh quote, never the same signed transaction) is safe.
func summarize(att *SwapAttempt, res *SwapResult, explorerURL string) Summary {
	s := Summary{
		TxHash:         att.TxHash,
		ApprovalTxHash: att.ApprovalTxHash,
		RetrySafe:      true,
	}
	if explorerURL != "" && (att.Broadcast || att.Unconfirmed) && att.TxHash != "" {
		s.ExplorerURL = ExplorerTxURL(explorerURL, att.TxHash)
	}
	approved := att.ApprovalTxHash != ""
	in := att.Intent

	switch att.Outcome {
	case OutcomeConfirmed:
		s.FundsMoved = true
		s.GasSpent = true
		s.Message = fmt.Sprintf("Swap confirmed: sold %s %s for about %s %s.",
			in.SellAmountHuman, in.SellToken.Symbol, res.BuyAmount, in.BuyToken.Symbol)
		if att.ForwardTxHash != "" && att.ForwardErr == nil {
			s.Message += " The bought tokens were sent to the recipient."
		}
		if att.ForwardErr != nil {
			s.Message += " Sending the bought tokens to the recipient failed; they remain in the swap wallet."
		}
		return s

	case OutcomeReverted:
		s.GasSpent = true
		s.Message = "The swap transaction reverted on-chain. No tokens were swapped but gas was spent. Request a new quote to try again."
		return s
	}

	s.GasSpent = approved
	code := swaperr.CodeOf(att.Err)
	switch code {
	case swaperr.CodeTokenNotFound:
		s.Message = "The token could not be found. No funds moved."
	case swaperr.CodeQuoteUnavailable:
		s.Message = "No quote is available for this swap right now. No funds moved."
	case swaperr.CodeInsufficientBalance:
		s.Message = "The wallet balance is too low for this swap. No funds moved."
	case swaperr.CodeInvalid:
		msg := "invalid request"
		if e, ok := swaperr.As(att.Err); ok && e.Message != "" {
			msg = e.Message
		}
		s.Message = fmt.Sprintf("The swap was rejected: %s. No funds moved.", msg)
	case swaperr.CodeApprovalFailed:
		s.Message = "The token approval failed, so the swap was not executed."
		if approved {
			s.Message += fmt.Sprintf(" The approval transaction %s was sent and may have spent gas.", att.ApprovalTxHash)
		}
	case swaperr.CodeSignatureDeclined:
		s.Message = "The permit signature was declined, so the swap was not executed."
	case swaperr.CodeSubmissionFailed:
		if att.Unconfirmed {
			s.RetrySafe = false
			s.Unconfirmed = true
			s.Message = fmt.Sprintf("Submitting the swap transaction %s failed ambiguously after %d attempt(s). "+
				"It may still be mined and gas may have been spent; check the transaction before retrying.",
				att.TxHash, att.SubmissionAttempts)
			break
		}
		s.Message = fmt.Sprintf("The swap transaction could not be submitted after %d attempt(s). No swap took place.",
			att.SubmissionAttempts)
	case swaperr.CodeConfirmationTimeout:
		s.GasSpent = true
		s.RetrySafe = false
		s.Unconfirmed = true
		s.Message = "The swap was submitted but not confirmed in time. It may still be mined; check the transaction before retrying."
	case swaperr.CodeCancelled:
		s.Message = "The swap was cancelled before submission. No funds moved."
	default:
		s.Message = "The swap failed before completion. No swap took place."
	}
	if approved && code != swaperr.CodeApprovalFailed && code != swaperr.CodeConfirmationTimeout && !att.Unconfirmed {
		s.Message += " Approval succeeded, swap not yet executed."
	}
	return s
}

// ExplorerTxURL links a transaction on the block explorer.
func ExplorerTxURL(base, txHash string) string {
	return base + "/tx/" + txHash
}
