package credentials

// Credentials represents the stored credentials in credentials.toml.
type Credentials struct {
	Version int           `toml:"version"`
	Neo     NeoCredential `toml:"neo"`
}

// NeoCredential holds the neo access token.
type NeoCredential struct {
	Token string `toml:"token,omitempty"`
}
