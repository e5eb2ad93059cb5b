package legacyimport

import "github.com/google/uuid"

// importNamespace seeds the v5 ids of imported photos, so a row can only be created once
// per source item and project even if two runs overlap.
var importNamespace = uuid.MustParse("6f1d0c3e-4b8a-5c2e-9a57-3d2f8e1b7c40")

func v5(name string) string {
	return uuid.NewSHA1(importNamespace, []byte(name)).String()
}

func legacyPhotoID(projectID, filename string) string {
	return v5("legacy:" + projectID + ":" + filename)
}

func flickrPhotoID(projectID, flickrID string) string {
	return v5("flickr:" + projectID + ":" + flickrID)
}
