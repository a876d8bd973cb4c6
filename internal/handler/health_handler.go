package handler

import "net/http"

// HealthHandler は稼働確認のHTTPハンドラー。
type HealthHandler struct {
	configured bool
}

// NewHealthHandler はHealthHandlerを生成する。
// configuredは生成APIのキーが設定されているかを示す。
func NewHealthHandler(configured bool) *HealthHandler {
	return &HealthHandler{configured: configured}
}

type healthResponse struct {
	Status     string `json:"status"`
	Configured bool   `json:"configured"`
}

// Health は稼働状態を返す。DBや外部APIには問い合わせない。
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Configured: h.configured,
	})
}
