// Package apperrors defines the typed error taxonomy shared by the transfer
// server, transfer client, and network discovery components.
//
// Every low-level failure (socket, HTTP, timeout, filesystem, payload format)
// is translated exactly once, at the boundary where it occurs, into a
// *TransferError carrying a Kind. Callers branch on the Kind — via KindOf or
// Retryable — never on error message text.
//
// Example:
//
//	if err := client.DownloadFile(ctx, sess, ""); err != nil {
//	    if apperrors.Retryable(err) {
//	        // schedule another attempt
//	    }
//	    ui.Show(apperrors.UserMessage(err))
//	}
package apperrors
