package aicore

// Deployment is one entry from the AI Core control plane's
// /v2/lm/deployments response, reduced to the fields the Deployment
// Registry needs.
type Deployment struct {
	ID                string
	Status            string
	ConfigurationName string
	ModelName         string
	ModelVersion      string
	DeploymentURL     string
	StartTime         string
}

// Running reports whether the deployment is eligible for binding.
func (d Deployment) Running() bool {
	return d.Status == "RUNNING"
}

// deploymentsResponse mirrors the raw JSON shape of
// GET /v2/lm/deployments.
type deploymentsResponse struct {
	Count     int              `json:"count"`
	Resources []deploymentJSON `json:"resources"`
}

type deploymentJSON struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	ConfigurationName string          `json:"configurationName"`
	DeploymentURL     string          `json:"deploymentUrl"`
	StartTime         string          `json:"startTime"`
	Details           *detailsJSON    `json:"details"`
}

type detailsJSON struct {
	Resources *resourcesJSON `json:"resources"`
}

// resourcesJSON accepts both casings the upstream is known to emit for
// the nested backend details block.
type resourcesJSON struct {
	BackendDetails      *backendDetailsJSON `json:"backendDetails"`
	BackendDetailsSnake *backendDetailsJSON `json:"backend_details"`
}

type backendDetailsJSON struct {
	Model *modelJSON `json:"model"`
}

type modelJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (d deploymentJSON) toDeployment() Deployment {
	out := Deployment{
		ID:                d.ID,
		Status:            d.Status,
		ConfigurationName: d.ConfigurationName,
		DeploymentURL:     d.DeploymentURL,
		StartTime:         d.StartTime,
	}
	if d.Details == nil || d.Details.Resources == nil {
		return out
	}
	// Prefer backendDetails when both casings are present.
	bd := d.Details.Resources.BackendDetails
	if bd == nil {
		bd = d.Details.Resources.BackendDetailsSnake
	}
	if bd != nil && bd.Model != nil {
		out.ModelName = bd.Model.Name
		out.ModelVersion = bd.Model.Version
	}
	return out
}

// resourceGroupsResponse mirrors GET /v2/admin/resourceGroups.
type resourceGroupsResponse struct {
	Count     int                `json:"count"`
	Resources []resourceGroupJSON `json:"resources"`
}

type resourceGroupJSON struct {
	ResourceGroupID string `json:"resourceGroupId"`
	Status          string `json:"status"`
}
