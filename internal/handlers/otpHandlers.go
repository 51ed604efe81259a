package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"aadhar-otp/internal/models"
	"aadhar-otp/internal/services"
	"aadhar-otp/internal/utils"
)

const (
	msgSendRequired   = "Aadhar required"
	msgVerifyRequired = "Aadhar and OTP required"
	msgServerError    = "Server error"
)

// callerMessages maps service failures to the message shown to clients. Every
// entry is answered with 400.
var callerMessages = []struct {
	kind    error
	message string
}{
	{services.ErrContactUnavailable, "No registered email found for this Aadhaar"},
	{services.ErrNotFoundOrUsed, "OTP not found or already used"},
	{services.ErrExpired, "OTP expired"},
	{services.ErrInvalidCode, "Invalid OTP"},
	{services.ErrAttemptsExceeded, "Too many invalid attempts, request a new OTP"},
}

type OTPHandler struct {
	service  services.OTPService
	validate *validator.Validate
}

func NewOTPHandler(service services.OTPService) *OTPHandler {
	return &OTPHandler{service: service, validate: validator.New()}
}

func (h *OTPHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.SendOTPRequest
	if !h.decode(w, r, &req, msgSendRequired) {
		return
	}

	result, err := h.service.SendOTP(r.Context(), req.Aadhar)
	if err != nil {
		h.writeError(w, r, err, msgSendRequired, "send")
		return
	}

	message := "OTP sent successfully"
	if result.Fallback {
		message = "OTP sent successfully (mock mode)"
	}
	utils.RespondWithJSON(w, http.StatusOK, models.OTPResponse{Success: true, Message: message})
}

func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if !h.decode(w, r, &req, msgVerifyRequired) {
		return
	}

	identity, err := h.service.VerifyOTP(r.Context(), req.Aadhar, req.OTP)
	if err != nil {
		h.writeError(w, r, err, msgVerifyRequired, "verify")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, models.OTPResponse{
		Success: true,
		Message: "OTP verified successfully",
		User:    identity,
	})
}

// decode reads and validates the JSON body. An empty body counts as missing
// fields, not as malformed input.
func (h *OTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any, requiredMsg string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Invalid JSON body for OTP request")
		utils.SendJSONError(w, requiredMsg, http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		utils.SendJSONError(w, requiredMsg, http.StatusBadRequest)
		return false
	}
	return true
}

func (h *OTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error, requiredMsg, op string) {
	if errors.Is(err, services.ErrInvalidRequest) {
		utils.SendJSONError(w, requiredMsg, http.StatusBadRequest)
		return
	}
	for _, c := range callerMessages {
		if errors.Is(err, c.kind) {
			utils.SendJSONError(w, c.message, http.StatusBadRequest)
			return
		}
	}

	log.Ctx(r.Context()).Error().Err(err).Str("op", op).Msg("OTP request failed")
	utils.SendJSONError(w, msgServerError, http.StatusInternalServerError)
}
