package models

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse is the successful response of POST /query.
type QueryResponse struct {
	Answer string `json:"answer"`
}
