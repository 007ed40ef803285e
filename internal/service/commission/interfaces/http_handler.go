package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/pkg/tracing"
	"nexus-commission/internal/service/commission/application"
	"nexus-commission/internal/service/commission/domain"
	"nexus-commission/internal/zookeeper"
)

const maxBodyBytes = 1 << 20

// HealthChecker 通常是数据库存储
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CommissionHandler 封装了佣金服务的 HTTP 处理器
type CommissionHandler struct {
	service *application.CommissionService
	auth    *Authenticator
	hub     *PushHub
	health  HealthChecker
	tracer  trace.Tracer
}

func NewCommissionHandler(service *application.CommissionService, auth *Authenticator, hub *PushHub, health HealthChecker, tracer trace.Tracer) *CommissionHandler {
	return &CommissionHandler{service: service, auth: auth, hub: hub, health: health, tracer: tracer}
}

// RegisterRoutes 在 chi 路由上注册所有路由
func (h *CommissionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())
	if h.hub != nil {
		r.With(h.auth.Middleware, RequireRole(RoleOperator, RoleReviewer)).Get("/ws", h.hub.ServeWs)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(tracing.Middleware(h.tracer), logger.Middleware, h.auth.Middleware)

		r.With(RequireRole(RoleIngest)).Post("/orders/attribute", h.attribute)

		r.Route("/partners", func(r chi.Router) {
			r.With(RequireRole()).Post("/", h.registerPartner)
			r.Route("/{partnerID}", func(r chi.Router) {
				r.Get("/", h.getPartner)
				r.With(RequireRole()).Post("/deactivate", h.deactivatePartner)
				r.With(RequireRole()).Put("/override", h.setOverride)
				r.With(RequireRole(RoleOperator)).Post("/tier/recompute", h.recomputeTier)
				r.Get("/attributions", h.listAttributions)
				r.With(RequireRole(RoleOperator)).Post("/payouts", h.createPayout)
				r.Get("/payouts", h.listPayouts)
			})
		})

		r.Route("/payouts/{payoutID}", func(r chi.Router) {
			r.Get("/", h.getPayout)
			r.With(RequireRole(RoleOperator)).Post("/settle", h.settlePayout)
			r.With(RequireRole(RoleOperator)).Post("/release", h.releasePayout)
		})

		r.Route("/attributions/{attributionID}", func(r chi.Router) {
			r.Use(RequireRole(RoleReviewer))
			r.Post("/approve", h.approve)
			r.Post("/reject", h.reject)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Use(RequireRole())
			r.Get("/", h.listRules)
			r.Post("/", h.createRule)
			r.Put("/{ruleID}", h.updateRule)
			r.Delete("/{ruleID}", h.deactivateRule)
		})
	})
}

func (h *CommissionHandler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.health.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ok": false, "db": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *CommissionHandler) attribute(w http.ResponseWriter, r *http.Request) {
	var req application.AttributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.Attribute(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (h *CommissionHandler) registerPartner(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterPartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.RegisterPartner(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) getPartner(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetPartner(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) deactivatePartner(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.DeactivatePartner(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) setOverride(w http.ResponseWriter, r *http.Request) {
	var req application.OverrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.SetPartnerOverride(r.Context(), chi.URLParam(r, "partnerID"), req.Rate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) recomputeTier(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.RecomputeTier(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) listAttributions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListAttributions(r.Context(), chi.URLParam(r, "partnerID"), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) createPayout(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.CreatePayout(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.NothingToPay {
		status = http.StatusOK
	}
	respondJSON(w, status, resp)
}

func (h *CommissionHandler) listPayouts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListPayouts(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) getPayout(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetPayout(r.Context(), chi.URLParam(r, "payoutID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) settlePayout(w http.ResponseWriter, r *http.Request) {
	var req application.SettlePayoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.SettlePayout(r.Context(), chi.URLParam(r, "payoutID"), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) releasePayout(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ReleasePayout(r.Context(), chi.URLParam(r, "payoutID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) approve(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ApproveAttribution(r.Context(), chi.URLParam(r, "attributionID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) reject(w http.ResponseWriter, r *http.Request) {
	var req application.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.RejectAttribution(r.Context(), chi.URLParam(r, "attributionID"), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) listRules(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListRules(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) createRule(w http.ResponseWriter, r *http.Request) {
	var req application.RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.CreateRule(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (h *CommissionHandler) updateRule(w http.ResponseWriter, r *http.Request) {
	var req application.RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.service.UpdateRule(r.Context(), chi.URLParam(r, "ruleID"), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CommissionHandler) deactivateRule(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.DeactivateRule(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// errorStatus 把领域错误映射为 HTTP 状态码与错误码
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAlreadyAttributed):
		return http.StatusConflict, "already_attributed"
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrRateOutOfRange),
		errors.Is(err, domain.ErrInvalidScope),
		errors.Is(err, domain.ErrPartnerInactive),
		errors.Is(err, money.ErrMalformed),
		errors.Is(err, money.ErrNegative),
		errors.Is(err, money.ErrTooPrecise),
		errors.Is(err, money.ErrOutOfRange):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrPartnerNotFound),
		errors.Is(err, domain.ErrRuleNotFound),
		errors.Is(err, domain.ErrAttributionNotFound),
		errors.Is(err, domain.ErrPayoutNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrPayoutNotPending),
		errors.Is(err, domain.ErrPayoutNotReleasable),
		errors.Is(err, domain.ErrClaimConflict):
		return http.StatusConflict, "inconsistent_state"
	case errors.Is(err, zookeeper.ErrLockTimeout):
		return http.StatusServiceUnavailable, "lock_timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, status, code, http.StatusText(status))
		return
	}
	respondError(w, status, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "validation", "invalid request body: "+err.Error())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": code, "message": message})
}
