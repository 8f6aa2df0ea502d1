package cmd

import (
	"fmt"

	"github.com/rustyeddy/tweetrade/vault"
)

// Canonical vault field labels. The configure command writes exactly these;
// the trade command reads them back. Key and token identifiers are public
// and stay readable in the vault file, secrets are encrypted.
const (
	labelVenueKey          = "Venue key"
	labelVenueSecret       = "Venue secret"
	labelVenuePassphrase   = "Venue passphrase"
	labelConsumerKey       = "Stream consumer key"
	labelConsumerSecret    = "Stream consumer secret"
	labelAccessToken       = "Stream access token"
	labelAccessTokenSecret = "Stream access token secret"
)

// profileFields lists the canonical fields in prompt order.
var profileFields = []vault.Field{
	{Label: labelVenueKey, Public: true},
	{Label: labelVenueSecret},
	{Label: labelVenuePassphrase},
	{Label: labelConsumerKey, Public: true},
	{Label: labelConsumerSecret},
	{Label: labelAccessToken, Public: true},
	{Label: labelAccessTokenSecret},
}

// fieldMap indexes decrypted fields by label and checks none are missing.
func fieldMap(fields []vault.Field) (map[string]string, error) {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Label] = f.Value
	}
	for _, want := range profileFields {
		if _, ok := m[want.Label]; !ok {
			return nil, fmt.Errorf("profile is missing field %q; re-run configure", want.Label)
		}
	}
	return m, nil
}
