package identity

// mergeProfile picks the display values to store for a sender. Directory
// data wins over the self-reported push name; a failed lookup falls back to
// the push name so ingestion never stalls on the provider.
func mergeProfile(pushName string, fetched Profile, lookupOK bool) Profile {
	merged := Profile{Name: pushName}
	if lookupOK {
		if fetched.Name != "" {
			merged.Name = fetched.Name
		}
		merged.AvatarURL = fetched.AvatarURL
	}
	return merged
}
