package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "waflow/internal/errors"
	"waflow/internal/models"
	"waflow/internal/tracing"
	"waflow/internal/validation"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestInfo := tracing.GetRequestInfo(r.Context())
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		apperrors.LogError(s.logger, err, "Request failed")
	}
	s.writeJSON(w, status, apperrors.ToHTTPResponse(err, requestInfo.RequestID))
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// loadAccount resolves the {id} path variable to an account or writes
// the error response itself.
func (s *Server) loadAccount(w http.ResponseWriter, r *http.Request) *models.Account {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError("id", mux.Vars(r)["id"], "must be a number"))
		return nil
	}
	account, err := s.deps.DB.GetAccount(r.Context(), id)
	if err != nil {
		s.writeError(w, r, apperrors.NewDatabaseError("get account", err))
		return nil
	}
	if account == nil {
		s.writeError(w, r, apperrors.NewNotFoundError("account", mux.Vars(r)["id"]))
		return nil
	}
	return account
}

func (s *Server) handleListAccounts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := s.deps.DB.ListAccounts(r.Context())
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("list accounts", err))
			return
		}
		s.writeJSON(w, http.StatusOK, accounts)
	}
}

func (s *Server) handleGetAccount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if account := s.loadAccount(w, r); account != nil {
			s.writeJSON(w, http.StatusOK, account)
		}
	}
}

func (s *Server) handleCreateAccount() http.HandlerFunc {
	type request struct {
		Name        string `json:"name"`
		SessionName string `json:"sessionName"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("body", "", "invalid JSON"))
			return
		}
		if req.Name == "" {
			s.writeError(w, r, apperrors.NewValidationError("name", "", "name is required"))
			return
		}
		if err := validation.ValidateSessionName(req.SessionName); err != nil {
			s.writeError(w, r, err)
			return
		}

		account, err := s.deps.DB.CreateAccount(r.Context(), req.Name, req.SessionName)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("create account", err))
			return
		}

		// Best effort: provision the gateway session now so the account
		// can come online without a second call.
		client := s.deps.Gateway.ClientFor(account.SessionName)
		if err := client.CreateSession(r.Context()); err != nil {
			s.logger.WithError(err).WithField("session", account.SessionName).Warn("Gateway session creation failed")
		} else if err := client.StartSession(r.Context()); err != nil {
			s.logger.WithError(err).WithField("session", account.SessionName).Warn("Gateway session start failed")
		}

		s.writeJSON(w, http.StatusCreated, account)
	}
}

func (s *Server) handleAccountHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		report, err := s.deps.Health.Report(r.Context(), account.ID, time.Now())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleAccountQuota() http.HandlerFunc {
	type response struct {
		AccountID  int64 `json:"accountId"`
		DailyLimit int   `json:"dailyLimit"`
		SentToday  int   `json:"sentToday"`
		Remaining  int   `json:"remaining"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		now := time.Now()
		limit := s.deps.Rate.DailyLimit(account, now)
		sent, err := s.deps.DB.CountSentToday(r.Context(), account.ID, now)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("count sent today", err))
			return
		}
		remaining := limit - sent
		if remaining < 0 {
			remaining = 0
		}
		s.writeJSON(w, http.StatusOK, response{
			AccountID:  account.ID,
			DailyLimit: limit,
			SentToday:  sent,
			Remaining:  remaining,
		})
	}
}

func (s *Server) handleRiskHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		events, err := s.deps.RiskEngine.History(r.Context(), account.ID, queryInt(r, "limit", 50))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"accountId": account.ID,
			"riskScore": account.RiskScore,
			"events":    events,
		})
	}
}

func (s *Server) handleResetRisk() http.HandlerFunc {
	type request struct {
		Operator string `json:"operator"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Operator == "" {
			s.writeError(w, r, apperrors.NewValidationError("operator", "", "operator name is required"))
			return
		}
		if err := s.deps.RiskEngine.ResetRisk(r.Context(), account.ID, req.Operator); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.WithFields(logrus.Fields{
			"accountId": account.ID,
			"operator":  req.Operator,
		}).Info("Risk score reset by operator")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleEngagementStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		stats, err := s.deps.Engagement.Stats(r.Context(), account.ID, queryInt(r, "top", 10))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleHeatmap() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		cells, err := s.deps.Health.Heatmap(r.Context(), account.ID, queryInt(r, "days", 30))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, cells)
	}
}

func (s *Server) handleSendTime() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		chatID := r.URL.Query().Get("chatId")
		rec, err := s.deps.SendTime.Recommend(r.Context(), account.ID, chatID, time.Now())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleSetLimitOverride() http.HandlerFunc {
	type request struct {
		Limit *int `json:"limit"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("body", "", "invalid JSON"))
			return
		}
		if req.Limit != nil && *req.Limit < 0 {
			s.writeError(w, r, apperrors.NewValidationError("limit", strconv.Itoa(*req.Limit), "must not be negative"))
			return
		}
		if err := s.deps.DB.SetDailyLimitOverride(r.Context(), account.ID, req.Limit); err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("set limit override", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleContactSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		synced, err := s.deps.ContactSync.SyncAccount(r.Context(), account)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"synced": synced})
	}
}

func (s *Server) handleValidatePeer() http.HandlerFunc {
	type request struct {
		ChatID string `json:"chatId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("body", "", "invalid JSON"))
			return
		}
		if err := validation.ValidateChatID(req.ChatID); err != nil {
			s.writeError(w, r, err)
			return
		}
		valid, err := s.deps.ContactSync.ValidatePeer(r.Context(), account, req.ChatID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
	}
}

func (s *Server) handleListCampaigns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		campaigns, err := s.deps.DB.ListCampaignsByAccount(r.Context(), account.ID)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("list campaigns", err))
			return
		}
		s.writeJSON(w, http.StatusOK, campaigns)
	}
}

func (s *Server) handleCreateCampaign() http.HandlerFunc {
	type request struct {
		Name     string `json:"name"`
		Template string `json:"template"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		account := s.loadAccount(w, r)
		if account == nil {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("body", "", "invalid JSON"))
			return
		}
		if req.Name == "" {
			s.writeError(w, r, apperrors.NewValidationError("name", "", "name is required"))
			return
		}
		if err := validation.ValidateTemplate(req.Template); err != nil {
			s.writeError(w, r, err)
			return
		}
		campaign, err := s.deps.DB.CreateCampaign(r.Context(), account.ID, req.Name, req.Template)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("create campaign", err))
			return
		}
		s.writeJSON(w, http.StatusCreated, campaign)
	}
}

// loadCampaign resolves the {id} path variable to a campaign or writes
// the error response itself.
func (s *Server) loadCampaign(w http.ResponseWriter, r *http.Request) *models.Campaign {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError("id", mux.Vars(r)["id"], "must be a number"))
		return nil
	}
	campaign, err := s.deps.DB.GetCampaign(r.Context(), id)
	if err != nil {
		s.writeError(w, r, apperrors.NewDatabaseError("get campaign", err))
		return nil
	}
	if campaign == nil {
		s.writeError(w, r, apperrors.NewNotFoundError("campaign", mux.Vars(r)["id"]))
		return nil
	}
	return campaign
}

func (s *Server) handleGetCampaign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaign := s.loadCampaign(w, r)
		if campaign == nil {
			return
		}
		total, pending, err := s.deps.DB.CountRecipients(r.Context(), campaign.ID)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("count recipients", err))
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"campaign":          campaign,
			"totalRecipients":   total,
			"pendingRecipients": pending,
		})
	}
}

func (s *Server) handleAddRecipients() http.HandlerFunc {
	type recipientInput struct {
		ChatID     string            `json:"chatId"`
		Attributes map[string]string `json:"attributes"`
	}
	type request struct {
		Recipients []recipientInput `json:"recipients"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		campaign := s.loadCampaign(w, r)
		if campaign == nil {
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, apperrors.NewValidationError("body", "", "invalid JSON"))
			return
		}
		if len(req.Recipients) == 0 {
			s.writeError(w, r, apperrors.NewValidationError("recipients", "", "at least one recipient is required"))
			return
		}

		recipients := make([]models.Recipient, 0, len(req.Recipients))
		for _, in := range req.Recipients {
			if err := validation.ValidateChatID(in.ChatID); err != nil {
				s.writeError(w, r, err)
				return
			}
			recipients = append(recipients, models.Recipient{
				CampaignID: campaign.ID,
				ChatID:     in.ChatID,
				Attributes: in.Attributes,
			})
		}

		if err := s.deps.DB.AddRecipients(r.Context(), campaign.ID, recipients); err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("add recipients", err))
			return
		}
		s.writeJSON(w, http.StatusCreated, map[string]int{"added": len(recipients)})
	}
}

func (s *Server) handleStartCampaign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaign := s.loadCampaign(w, r)
		if campaign == nil {
			return
		}
		account, err := s.deps.DB.GetAccount(r.Context(), campaign.AccountID)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("get account", err))
			return
		}
		if account == nil {
			s.writeError(w, r, apperrors.NewNotFoundError("account", strconv.FormatInt(campaign.AccountID, 10)))
			return
		}
		if account.Status == models.AccountStatusSuspended {
			s.writeError(w, r, apperrors.New(apperrors.ErrCodeAccountSuspended, "account is suspended").
				WithContext("account_id", account.ID).
				WithUserMessage("Account is suspended, reset its risk score before starting campaigns"))
			return
		}

		now := time.Now()
		limit := s.deps.Rate.DailyLimit(account, now)
		sent, err := s.deps.DB.CountSentToday(r.Context(), account.ID, now)
		if err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("count sent today", err))
			return
		}
		if limit > 0 && sent >= limit {
			s.writeError(w, r, apperrors.New(apperrors.ErrCodeQuotaExhausted, "daily send quota already spent").
				WithContext("daily_limit", limit).
				WithContext("sent_today", sent).
				WithUserMessage("Daily send quota is spent, the campaign can start tomorrow"))
			return
		}

		if err := s.deps.DB.StartCampaign(r.Context(), campaign.ID, now); err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("start campaign", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePauseCampaign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaign := s.loadCampaign(w, r)
		if campaign == nil {
			return
		}
		if campaign.Status != models.CampaignStatusRunning {
			s.writeError(w, r, apperrors.NewValidationError("status", string(campaign.Status), "only running campaigns can be paused"))
			return
		}
		if err := s.deps.DB.UpdateCampaignStatus(r.Context(), campaign.ID, models.CampaignStatusPaused); err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("pause campaign", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleResumeCampaign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaign := s.loadCampaign(w, r)
		if campaign == nil {
			return
		}
		if campaign.Status != models.CampaignStatusPaused {
			s.writeError(w, r, apperrors.NewValidationError("status", string(campaign.Status), "only paused campaigns can be resumed"))
			return
		}
		if err := s.deps.DB.UpdateCampaignStatus(r.Context(), campaign.ID, models.CampaignStatusRunning); err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("resume campaign", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDispatcherStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.deps.Dispatcher.Status())
	}
}
