//go:build !windows

package notification

// showMessageBox is a no-op off Windows; ShowError already logged the message.
func showMessageBox(title, message string) error {
	return nil
}
