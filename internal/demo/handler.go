// Package demo はローカル動作確認用のウォークスルーを提供する。
// mode=dev のときだけルートに載せる。本番では使わない。
package demo

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"checkout-zone-backend/internal/checkout"
	"checkout-zone-backend/internal/equipment"
	"checkout-zone-backend/internal/platform/apperr"
	"checkout-zone-backend/internal/users"
)

type Handler struct {
	users     *users.Service
	equipment *equipment.Service
	checkout  *checkout.Service

	mu sync.Mutex
	// setup/step で払い出したIDを次の step へ引き継ぐ
	requesterID   string
	managerID     string
	equipmentIDs  []string
	lastRequestID string
	lastRecordIDs []string
}

func RegisterRoutes(r gin.IRoutes, userSvc *users.Service, eqSvc *equipment.Service, coSvc *checkout.Service) {
	h := &Handler{users: userSvc, equipment: eqSvc, checkout: coSvc}

	r.POST("/demo/setup", h.Setup)
	r.POST("/demo/step1-request", h.Step1Request)
	r.POST("/demo/step2-approve", h.Step2Approve)
	r.POST("/demo/step3-fulfill", h.Step3Fulfill)
	r.POST("/demo/step4-return", h.Step4Return)
	r.GET("/demo/overview", h.Overview)
}

func strp(s string) *string { return &s }

// Setup はデモ用の利用者2名と機材2台を投入する。
func (h *Handler) Setup(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx := c.Request.Context()

	requester, err := h.users.Create(ctx, users.CreateUserRequest{
		Username:   "jane.smith",
		Email:      "jane.smith@example.com",
		FirstName:  "Jane",
		LastName:   "Smith",
		Department: strp("Marketing"),
		EmployeeID: strp("EMP002"),
	})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	manager, err := h.users.Create(ctx, users.CreateUserRequest{
		Username:   "bob.manager",
		Email:      "bob.manager@example.com",
		FirstName:  "Bob",
		LastName:   "Manager",
		Department: strp("IT"),
		EmployeeID: strp("EMP003"),
		Role:       strp(string(users.RoleManager)),
	})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}

	laptop, err := h.equipment.Create(ctx, equipment.CreateEquipmentRequest{
		InternalID: "LAP-002",
		Name:       "MacBook Pro 16",
		Model:      strp("MacBook Pro"),
		Brand:      strp("Apple"),
		Type:       "LAPTOP",
		Condition:  strp(string(equipment.CondNew)),
		Location:   strp("Storage Room A"),
	})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	camera, err := h.equipment.Create(ctx, equipment.CreateEquipmentRequest{
		InternalID: "CAM-001",
		Name:       "Canon EOS R5",
		Model:      strp("EOS R5"),
		Brand:      strp("Canon"),
		Type:       "CAMERA",
		Condition:  strp(string(equipment.CondGood)),
		Location:   strp("Storage Room B"),
	})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}

	h.requesterID = requester.UserID
	h.managerID = manager.UserID
	h.equipmentIDs = []string{laptop.EquipmentID, camera.EquipmentID}
	h.lastRequestID = ""
	h.lastRecordIDs = nil

	c.JSON(http.StatusCreated, gin.H{
		"users":     []users.UserResponse{requester, manager},
		"equipment": []equipment.EquipmentResponse{laptop, camera},
		"next":      "POST /demo/step1-request",
	})
}

func (h *Handler) Step1Request(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.requesterID == "" {
		c.JSON(http.StatusConflict, apperr.Body(apperr.CodeInvalidState, "run POST /demo/setup first"))
		return
	}
	res, err := h.checkout.Submit(c.Request.Context(), checkout.CreateRequestInput{
		UserID:       h.requesterID,
		EquipmentIDs: h.equipmentIDs,
		Purpose:      strp("Trade show demo booth"),
	})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	h.lastRequestID = res.RequestID
	c.JSON(http.StatusCreated, gin.H{"request": res, "next": "POST /demo/step2-approve"})
}

func (h *Handler) Step2Approve(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastRequestID == "" {
		c.JSON(http.StatusConflict, apperr.Body(apperr.CodeInvalidState, "run POST /demo/step1-request first"))
		return
	}
	res, err := h.checkout.Approve(c.Request.Context(), h.lastRequestID, checkout.DecisionInput{
		ApproverID: h.managerID,
		Notes:      strp("Approved for the trade show"),
	})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": res, "next": "POST /demo/step3-fulfill"})
}

func (h *Handler) Step3Fulfill(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastRequestID == "" {
		c.JSON(http.StatusConflict, apperr.Body(apperr.CodeInvalidState, "run POST /demo/step2-approve first"))
		return
	}
	recs, err := h.checkout.Fulfill(c.Request.Context(), h.lastRequestID, checkout.FulfillInput{
		ManagerID: h.managerID,
	})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	h.lastRecordIDs = h.lastRecordIDs[:0]
	for _, r := range recs {
		h.lastRecordIDs = append(h.lastRecordIDs, r.RecordID)
	}
	c.JSON(http.StatusCreated, gin.H{"records": recs, "next": "POST /demo/step4-return"})
}

func (h *Handler) Step4Return(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.lastRecordIDs) == 0 {
		c.JSON(http.StatusConflict, apperr.Body(apperr.CodeInvalidState, "run POST /demo/step3-fulfill first"))
		return
	}
	var returned []checkout.RecordResponse
	for _, id := range h.lastRecordIDs {
		res, err := h.checkout.Return(c.Request.Context(), id, checkout.ReturnInput{
			ManagerID: h.managerID,
			Condition: string(equipment.CondGood),
			Notes:     strp("Returned after the trade show"),
		})
		if err != nil {
			c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
			return
		}
		returned = append(returned, res)
	}
	h.lastRecordIDs = nil
	c.JSON(http.StatusOK, gin.H{"records": returned, "next": "GET /demo/overview"})
}

// Overview は現在の全体像をまとめて返す。
func (h *Handler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	allUsers, err := h.users.List(ctx)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	allEquipment, err := h.equipment.List(ctx, equipment.Filter{})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	requests, err := h.checkout.ListRequests(ctx, checkout.RequestFilter{})
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}
	open, err := h.checkout.ListOpenRecords(ctx, "")
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFrom(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":        allUsers,
		"equipment":    allEquipment,
		"requests":     requests,
		"open_records": open,
	})
}
