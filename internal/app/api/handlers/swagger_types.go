package handlers

import (
	"github.com/fatflowers/tenantmaster/internal/app/service/orchestrator"
	"github.com/fatflowers/tenantmaster/internal/app/service/provisioning"
	"github.com/fatflowers/tenantmaster/internal/app/service/statistics"
	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespProducts struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []*models.Product        `json:"data"`
}

type RespInitRepo struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    orchestrator.InitRepoResult `json:"data"`
}

type RespWorkspace struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Workspace         `json:"data"`
}

type RespWorkspaceList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    orchestrator.ListResult  `json:"data"`
}

type RespWorkspaceDetail struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    WorkspaceDetail          `json:"data"`
}

type RespChangePlan struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ChangePlanResponse       `json:"data"`
}

type RespDeletionReport struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    orchestrator.DeletionReport `json:"data"`
}

type RespPlanChanges struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []*models.PlanChange     `json:"data"`
}

type RespActivity struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ActivityResponse         `json:"data"`
}

type RespDashboard struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    statistics.Response      `json:"data"`
}

type RespDatabaseStatus struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    provisioning.ServerStatus `json:"data"`
}
