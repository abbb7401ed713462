package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/tenantmaster/internal/app/service/activity"
	"github.com/fatflowers/tenantmaster/internal/app/service/orchestrator"
	"github.com/fatflowers/tenantmaster/internal/app/service/statistics"
	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/response"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

// HeaderActor names the operator when the request body does not.
const HeaderActor = "X-Actor"

const recentActivityLimit = 20

var knownErrors = map[error]response.APIResponseCode{
	orchestrator.ErrWorkspaceNotFound: response.APIResponseCodeNotFound,
}

func fail(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.Err(err, knownErrors))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}

func actorOf(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if a := c.GetHeader(HeaderActor); a != "" {
		return a
	}
	return c.Query("actor")
}

// @Summary      List Products
// @Description  Lists the product catalog.
// @Tags         Admin
// @Produce      json
// @Param        active_only query bool false "Only active products"
// @Success      200  {object}  handlers.RespProducts
// @Router       /api/v1/admin/products [get]
func ApiListProducts(products ProductLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly, _ := strconv.ParseBool(c.Query("active_only"))
		res, err := products.List(c.Request.Context(), activeOnly)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Initialize Product Repository
// @Description  Creates the product's base code directory and publishes it as {product}-system.
// @Tags         Admin
// @Produce      json
// @Param        name path string true "Product name"
// @Success      200  {object}  handlers.RespInitRepo
// @Router       /api/v1/admin/products/{name}/init_repo [post]
func ApiInitProductRepo(ws WorkspaceManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := ws.InitializeProductRepo(c.Request.Context(), c.Param("name"), actorOf(c, ""))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Provision Workspace
// @Description  Registers a workspace and provisions it in the background. The returned record is in requested state.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body orchestrator.ProvisionRequest true "Workspace to provision"
// @Success      200  {object}  handlers.RespWorkspace
// @Router       /api/v1/admin/workspaces [post]
func ApiProvisionWorkspace(ws WorkspaceManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orchestrator.ProvisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		req.Actor = actorOf(c, req.Actor)
		req.IPAddress = c.ClientIP()
		res, err := ws.ProvisionAsync(c.Request.Context(), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List Workspaces
// @Description  Retrieves a paginated and filterable list of workspaces.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body orchestrator.ListRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespWorkspaceList
// @Router       /api/v1/admin/workspaces/list [post]
func ApiListWorkspaces(ws WorkspaceManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orchestrator.ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := ws.List(c.Request.Context(), &req)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// DatabaseStats are read live from the tenant database server.
type DatabaseStats struct {
	SizeMB      float64  `json:"size_mb"`
	Connections int      `json:"connections"`
	Tables      []string `json:"tables"`
}

type WorkspaceDetail struct {
	Workspace   *models.Workspace        `json:"workspace"`
	Activity    []*models.ActivityLog    `json:"activity"`
	PlanChanges []*models.PlanChange     `json:"plan_changes"`
	Backups     []*models.DatabaseBackup `json:"backups"`
	Database    *DatabaseStats           `json:"database,omitempty"`
}

// @Summary      Get Workspace
// @Description  Returns the workspace with its recent activity, plan changes, backups and live database figures.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Workspace ID"
// @Success      200  {object}  handlers.RespWorkspaceDetail
// @Router       /api/v1/admin/workspaces/{id} [get]
func ApiGetWorkspace(a *Admin) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		w, err := a.Workspaces.Get(ctx, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		logs, _, err := a.Activity.List(ctx, &activity.Query{WorkspaceID: w.ID, Limit: recentActivityLimit})
		if err != nil {
			fail(c, err)
			return
		}
		changes, err := a.Activity.ListPlanChanges(ctx, w.ID, recentActivityLimit)
		if err != nil {
			fail(c, err)
			return
		}
		backups, err := a.Workspaces.ListBackups(ctx, w.ID)
		if err != nil {
			fail(c, err)
			return
		}
		detail := &WorkspaceDetail{Workspace: w, Activity: logs, PlanChanges: changes, Backups: backups}
		if w.DBCreated && a.Databases != nil {
			detail.Database = &DatabaseStats{
				SizeMB:      a.Databases.MeasureSize(ctx, w.DBName),
				Connections: a.Databases.CountConnections(ctx, w.DBName),
				Tables:      a.Databases.ListTables(ctx, w.DBName),
			}
		}
		c.JSON(http.StatusOK, response.OKT(detail))
	}
}

type ChangePlanResponse struct {
	PlanChange *models.PlanChange `json:"plan_change"`
	Error      string             `json:"error,omitempty"`
}

// @Summary      Change Workspace Plan
// @Description  Moves a workspace to another plan, migrating between shared and dedicated deployment when needed.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Workspace ID"
// @Param        request body orchestrator.ChangePlanRequest true "New plan"
// @Success      200  {object}  handlers.RespChangePlan
// @Router       /api/v1/admin/workspaces/{id}/plan [post]
func ApiChangePlan(ws WorkspaceManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orchestrator.ChangePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		req.WorkspaceID = c.Param("id")
		req.Actor = actorOf(c, req.Actor)
		req.IPAddress = c.ClientIP()
		pc, err := ws.ChangePlan(c.Request.Context(), &req)
		switch {
		case err != nil && pc != nil:
			// the attempt was recorded; hand it back with the failure
			c.JSON(http.StatusOK, response.ErrorT(response.CodeOf(err), &ChangePlanResponse{PlanChange: pc, Error: err.Error()}))
		case err != nil:
			fail(c, err)
		default:
			c.JSON(http.StatusOK, response.OKT(&ChangePlanResponse{PlanChange: pc}))
		}
	}
}

type ActionRequest struct {
	Actor    string           `json:"actor"`
	Type     types.BackupType `json:"type"`
	Notes    string           `json:"notes"`
	BackupID string           `json:"backup_id"`
}

// @Summary      Workspace Action
// @Description  Runs pause, resume, suspend, cancel, backup, restore, sync or retry on a workspace.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Workspace ID"
// @Param        action path string true "pause|resume|suspend|cancel|backup|restore|sync|retry"
// @Param        request body handlers.ActionRequest false "Actor and action options"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/workspaces/{id}/{action} [post]
func ApiWorkspaceAction(ws WorkspaceManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ActionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		ctx := c.Request.Context()
		id, actor, ip := c.Param("id"), actorOf(c, req.Actor), c.ClientIP()

		var (
			res any
			err error
		)
		switch c.Param("action") {
		case "pause":
			res, err = ws.Pause(ctx, id, actor, ip)
		case "resume":
			res, err = ws.Resume(ctx, id, actor, ip)
		case "suspend":
			res, err = ws.Suspend(ctx, id, actor, ip)
		case "cancel":
			res, err = ws.Cancel(ctx, id, actor, ip)
		case "backup":
			res, err = ws.BackupWorkspace(ctx, id, &orchestrator.BackupRequest{Type: req.Type, Notes: req.Notes, Actor: actor, IPAddress: ip})
		case "restore":
			res, err = ws.RestoreWorkspace(ctx, id, &orchestrator.RestoreRequest{BackupID: req.BackupID, Actor: actor, IPAddress: ip})
		case "sync":
			res, err = ws.SyncDatabaseStats(ctx, id)
		case "retry":
			res, err = ws.RunAsync(ctx, id, actor)
		default:
			err = apperr.Validation("unknown action %q", c.Param("action"))
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Delete Workspace
// @Description  Drops the workspace database, removes its code and port, and deletes the record. Cleanup failures are listed as residuals.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Workspace ID"
// @Success      200  {object}  handlers.RespDeletionReport
// @Router       /api/v1/admin/workspaces/{id} [delete]
func ApiDeleteWorkspace(ws WorkspaceManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := ws.DeleteWorkspace(c.Request.Context(), c.Param("id"), actorOf(c, ""), c.ClientIP())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

// @Summary      List Plan Changes
// @Description  Lists recorded plan changes, newest first.
// @Tags         Admin
// @Produce      json
// @Param        workspace_id query string false "Workspace ID"
// @Param        limit query int false "Max rows"
// @Success      200  {object}  handlers.RespPlanChanges
// @Router       /api/v1/admin/plan_changes [get]
func ApiListPlanChanges(reader ActivityReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		res, err := reader.ListPlanChanges(c.Request.Context(), c.Query("workspace_id"), limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type ActivityResponse struct {
	Items []*models.ActivityLog `json:"items"`
	Total int64                 `json:"total"`
}

// @Summary      List Activity
// @Description  Lists the audit trail, newest first.
// @Tags         Admin
// @Produce      json
// @Param        workspace_id query string false "Workspace ID"
// @Param        action query string false "Action"
// @Param        limit query int false "Max rows"
// @Param        offset query int false "Offset"
// @Success      200  {object}  handlers.RespActivity
// @Router       /api/v1/admin/activity [get]
func ApiListActivity(reader ActivityReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := &activity.Query{WorkspaceID: c.Query("workspace_id"), Action: types.ActivityAction(c.Query("action"))}
		q.Limit, _ = strconv.Atoi(c.Query("limit"))
		q.Offset, _ = strconv.Atoi(c.Query("offset"))
		items, total, err := reader.List(c.Request.Context(), q)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ActivityResponse{Items: items, Total: total}))
	}
}

// @Summary      Dashboard Statistics
// @Description  Computes the dashboard statistics. Filters narrow workspace statistics; without data items every statistic is returned.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.Request false "Filters and data items"
// @Success      200  {object}  handlers.RespDashboard
// @Router       /api/v1/admin/dashboard [post]
func ApiDashboard(stats DashboardStatistics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		res, err := stats.GetStatistic(c.Request.Context(), &req)
		if err != nil {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Database Server Status
// @Description  Reports whether the tenant database server is reachable.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespDatabaseStatus
// @Router       /api/v1/admin/database/status [get]
func ApiDatabaseStatus(dbs DatabaseInspector) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT(dbs.ServerStatus(c.Request.Context())))
	}
}

// RegisterAdminRoutes mounts the admin API on r.
func RegisterAdminRoutes(r gin.IRouter, a *Admin) {
	r.GET("/products", ApiListProducts(a.Products))
	r.POST("/products/:name/init_repo", ApiInitProductRepo(a.Workspaces))

	r.POST("/workspaces", ApiProvisionWorkspace(a.Workspaces))
	r.POST("/workspaces/list", ApiListWorkspaces(a.Workspaces))
	r.GET("/workspaces/:id", ApiGetWorkspace(a))
	r.DELETE("/workspaces/:id", ApiDeleteWorkspace(a.Workspaces))
	r.POST("/workspaces/:id/plan", ApiChangePlan(a.Workspaces))
	r.POST("/workspaces/:id/:action", ApiWorkspaceAction(a.Workspaces))

	r.GET("/plan_changes", ApiListPlanChanges(a.Activity))
	r.GET("/activity", ApiListActivity(a.Activity))
	r.GET("/dashboard", ApiDashboard(a.Statistics))
	r.POST("/dashboard", ApiDashboard(a.Statistics))
	r.GET("/database/status", ApiDatabaseStatus(a.Databases))
}
