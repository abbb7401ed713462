package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/tenantmaster/internal/app/service/catalog"
	"github.com/fatflowers/tenantmaster/internal/app/service/materializer"
	"github.com/fatflowers/tenantmaster/internal/app/service/publisher"
	"github.com/fatflowers/tenantmaster/internal/models"
	"github.com/fatflowers/tenantmaster/pkg/apperr"
	"github.com/fatflowers/tenantmaster/pkg/types"
)

// DeployRequest is everything needed to lay out and publish the code of a
// dedicated workspace whose database and port already exist.
type DeployRequest struct {
	Product    string `json:"product"`
	Subdomain  string `json:"subdomain"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	Port       int    `json:"port"`
}

type DeployResult struct {
	Success      bool   `json:"success"`
	Path         string `json:"path"`
	RepoURL      string `json:"repo_url"`
	ManifestPath string `json:"manifest_path"`
	Error        string `json:"error"`
	// Step is the state that failed.
	Step string `json:"step"`

	err error
}

// Err returns the typed failure behind Error, nil on success.
func (r *DeployResult) Err() error {
	return r.err
}

func (r *DeployResult) fail(step types.ProvisionState, err error) *DeployResult {
	if step != "" {
		err = stepError(err, step)
	}
	r.Success = false
	r.Step = string(step)
	r.Error = err.Error()
	r.err = err
	return r
}

func (r *DeployRequest) validate() error {
	switch {
	case r.Product == "":
		return apperr.Validation("product is required")
	case !models.ValidSubdomain(r.Subdomain):
		return apperr.Validation("invalid subdomain %q", r.Subdomain)
	case r.DBName == "" || r.DBUser == "" || r.DBPassword == "":
		return apperr.Validation("database name, user and password are required")
	case r.Port <= 0 || r.Port > 65535:
		return apperr.Validation("invalid port %d", r.Port)
	}
	return nil
}

// Deploy materializes and publishes a dedicated workspace. Failures are
// reported in the result rather than returned.
func (s *Service) Deploy(ctx context.Context, req *DeployRequest) *DeployResult {
	res := &DeployResult{}
	if err := req.validate(); err != nil {
		return res.fail("", err)
	}
	product, err := s.deps.Catalog.Get(ctx, req.Product)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return res.fail("", apperr.Validation("unknown product %q", req.Product))
	}
	if err != nil {
		return res.fail("", err)
	}
	r := s.newRun(ctx, kindDeploy, nil, types.TopologyDedicated)
	res = s.deploy(ctx, product, req, r, nil)
	r.done(res.err)
	return res
}

// deploy runs the materialize and publish steps. onStep, when set, runs
// after each successful step and can abort the deploy.
func (s *Service) deploy(ctx context.Context, product *models.Product, req *DeployRequest, r *run,
	onStep func(state types.ProvisionState, res *DeployResult) error) *DeployResult {
	res := &DeployResult{}

	err := r.step(types.ProvisionStateCodeMaterialized, func(o *types.StepOutcome) error {
		out, err := s.deps.Code.Materialize(ctx, &materializer.Request{
			Product:    product,
			Subdomain:  req.Subdomain,
			DBName:     req.DBName,
			DBUser:     req.DBUser,
			DBPassword: req.DBPassword,
			Port:       req.Port,
		})
		if err != nil {
			return err
		}
		res.Path, res.ManifestPath = out.Path, out.ManifestPath
		o.Detail = out.ManifestPath
		return nil
	})
	if err == nil && onStep != nil {
		err = onStep(types.ProvisionStateCodeMaterialized, res)
	}
	if err != nil {
		return res.fail(types.ProvisionStateCodeMaterialized, err)
	}

	err = r.step(types.ProvisionStateRepoPublished, func(o *types.StepOutcome) error {
		out, err := s.deps.Repos.Publish(ctx, &publisher.Request{
			Dir:           res.Path,
			RepoName:      RepoName(product.Name, req.Subdomain),
			Description:   fmt.Sprintf("%s workspace %s", product.DisplayName, req.Subdomain),
			CommitMessage: fmt.Sprintf("Deploy %s for %s", product.Name, req.Subdomain),
		})
		if err != nil {
			return err
		}
		res.RepoURL = out.RepoURL
		if out.Skipped {
			o.Skipped = true
			o.Detail = "hosting token not configured"
			return nil
		}
		o.Detail = out.RepoURL
		return nil
	})
	if err == nil && onStep != nil {
		err = onStep(types.ProvisionStateRepoPublished, res)
	}
	if err != nil {
		return res.fail(types.ProvisionStateRepoPublished, err)
	}

	res.Success = true
	return res
}
