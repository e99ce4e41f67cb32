package unique

// ConsoleState bundles the console-identity artifacts this module tracks
// in memory once loaded, matching the static OTP/CTCert/SecureInfoA/LFCSB
// state HW::UniqueData keeps process-wide.
type ConsoleState struct {
	OTP                  *OTP
	SecureInfoA          *SecureInfoA
	LocalFriendCodeSeedB *LocalFriendCodeSeedB
	Movable              *MovableSed
}

// IsFullConsoleLinked reports whether every piece of console-identity data
// needed for online services is present and valid, matching
// HW::UniqueData::IsFullConsoleLinked.
func (c *ConsoleState) IsFullConsoleLinked() bool {
	return c.OTP != nil && c.OTP.Valid() && c.SecureInfoA != nil && c.LocalFriendCodeSeedB != nil
}

// Unlink clears all in-memory console-identity data, matching
// HW::UniqueData::UnlinkConsole (minus the on-disk save-data deletion,
// which belongs to the registry's directory layout, not this package).
func (c *ConsoleState) Unlink() {
	c.OTP = nil
	c.SecureInfoA = nil
	c.LocalFriendCodeSeedB = nil
	c.Movable = nil
}
