package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

// utf8BOM prefixes CSV sheets so spreadsheet tools detect the encoding.
const utf8BOM = "\ufeff"

// renderer produces artifact payloads for one export. The plan is computed
// once and shared by the plan and run order sheets.
type renderer struct {
	source  Source
	project domain.Project
	req     Request
	plan    *core.Plan
}

func (r *renderer) render(ctx context.Context, format Format) ([]byte, error) {
	switch format {
	case FormatMatrixCSV:
		matrix, err := r.source.BuildMatrix(ctx)
		if err != nil {
			return nil, err
		}
		return WriteCSV(matrix.Header(), matrix.Records())
	case FormatPlanCSV:
		plan, err := r.loadPlan(ctx)
		if err != nil {
			return nil, err
		}
		return WriteCSV(plan.Header(), plan.Records())
	case FormatRunOrderCSV:
		plan, err := r.loadPlan(ctx)
		if err != nil {
			return nil, err
		}
		return WriteCSV(plan.RunOrderHeader(), plan.RunOrderRecords())
	case FormatMasterMixJSON:
		mix, err := r.source.ComputeMasterMix(ctx, nil)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(mix, "", "  ")
	case FormatProtocolText:
		protocol, err := r.source.Protocol(ctx, r.req.IncludeMix)
		if err != nil {
			return nil, err
		}
		return []byte(protocol.Text()), nil
	case FormatProtocolPDF:
		protocol, err := r.source.Protocol(ctx, r.req.IncludeMix)
		if err != nil {
			return nil, err
		}
		return RenderProtocolPDF(protocol)
	case FormatProjectJSON:
		return json.MarshalIndent(r.project, "", "  ")
	case FormatProjectYAML:
		return yaml.Marshal(r.project)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func (r *renderer) loadPlan(ctx context.Context) (core.Plan, error) {
	if r.plan != nil {
		return *r.plan, nil
	}
	params := r.req.Plan
	if len(params.Groups) == 0 {
		params.Groups = core.DefaultGroups()
	}
	if params.Replicates == 0 {
		params.Replicates = core.DefaultReplicates
	}
	plan, err := r.source.GeneratePlan(ctx, params)
	if err != nil {
		return core.Plan{}, err
	}
	r.plan = &plan
	return plan, nil
}

// WriteCSV encodes a sheet with a UTF-8 byte order mark.
func WriteCSV(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
