package transfer

type SnapchatTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

type SnapchatOAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type SnapchatMedia struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	AdAccountID string `json:"ad_account_id"`
}

type SnapchatMediaRequest struct {
	Media []SnapchatMedia `json:"media"`
}

type SnapchatMediaResponse struct {
	RequestStatus string `json:"request_status"`
	RequestID     string `json:"request_id"`
	Media         []struct {
		SubRequestStatus      string `json:"sub_request_status"`
		SubRequestErrorReason string `json:"sub_request_error_reason"`
		Media                 struct {
			ID          string `json:"id"`
			MediaStatus string `json:"media_status"`
		} `json:"media"`
	} `json:"media"`
}

type SnapchatCreative struct {
	AdAccountID    string `json:"ad_account_id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Headline       string `json:"headline"`
	BrandName      string `json:"brand_name"`
	Shareable      bool   `json:"shareable"`
	TopSnapMediaID string `json:"top_snap_media_id"`
}

type SnapchatCreativeRequest struct {
	Creatives []SnapchatCreative `json:"creatives"`
}

type SnapchatErrorResponse struct {
	RequestStatus  string `json:"request_status"`
	RequestID      string `json:"request_id"`
	DebugMessage   string `json:"debug_message"`
	DisplayMessage string `json:"display_message"`
	ErrorCode      string `json:"error_code"`
}
