package models

// Upload is an image chosen by the user, held in memory for one request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
