package api

type LoginRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	APIKey       string `json:"apikey"`
	TIN          string `json:"tin"`
}

type LoginResponse struct {
	StatusCode Code       `json:"statusCode"`
	Message    string     `json:"message"`
	Data       *LoginData `json:"data"`
}

type LoginData struct {
	AccessToken   string `json:"accessToken"`
	EncryptionKey string `json:"encryptionKey"`
}
