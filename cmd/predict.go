package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flashcamp/camp-ensemble/camp"
	"github.com/flashcamp/camp-ensemble/camp/client"
	"github.com/flashcamp/camp-ensemble/camp/report"
	"github.com/flashcamp/camp-ensemble/camp/trace"
)

var (
	inputPath  string
	batchMode  bool
	endpoint   string
	traceLevel string
)

// predictor scores one raw input. Validation failures come back as *camp.ValidationError
// (local) or *client.APIError with fields (remote).
type predictor func(ctx context.Context, raw map[string]any) (*report.Response, error)

// predictCmd scores inputs locally or against a running server
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a startup from a JSON or YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(outputFormat); err != nil {
			return err
		}
		if inputPath == "" {
			return fmt.Errorf("--file is required (use - for stdin)")
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			return fmt.Errorf("unknown --trace level %q (valid: none, decisions)", traceLevel)
		}
		in, err := openInput(inputPath)
		if err != nil {
			return err
		}
		defer in.Close()

		predict, err := newPredictor()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !batchMode {
			raw, err := readObject(in, inputPath)
			if err != nil {
				return err
			}
			resp, err := predict(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return encode(out, outputFormat, resp)
		}

		level := trace.TraceLevel(traceLevel)
		summary, err := runBatch(cmd.Context(), in, out, predict, level)
		if err != nil {
			return err
		}
		if level != trace.TraceLevelDecisions {
			return nil
		}
		return encode(cmd.ErrOrStderr(), outputFormat, summary)
	},
}

func newPredictor() (predictor, error) {
	if endpoint != "" {
		c := client.New(endpoint, client.Options{})
		return c.Predict, nil
	}
	ens, _, err := buildPipeline(modelsDir, camp.EnsembleConfig{})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, raw map[string]any) (*report.Response, error) {
		rec, err := camp.Normalize(raw)
		if err != nil {
			return nil, err
		}
		res, err := ens.Predict(ctx, rec)
		if err != nil {
			return nil, err
		}
		return report.Assemble(res, rec), nil
	}, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// readObject decodes one input object. .yaml/.yml files are YAML, everything else JSON.
func readObject(r io.Reader, path string) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse YAML input: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse JSON input: %w", err)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("input must be an object")
	}
	return raw, nil
}

// runBatch scores JSON Lines from in, writes one compact response per line to out and
// returns the trace summary. Rejected and failed lines are traced, not fatal.
func runBatch(ctx context.Context, in io.Reader, out io.Writer, predict predictor, level trace.TraceLevel) (*trace.TraceSummary, error) {
	bt := trace.NewBatchTrace(trace.TraceConfig{Level: level})
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id := fmt.Sprintf("line-%d", line)
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil || raw == nil {
			logrus.WithField("line", line).Warnf("Skipping malformed JSON: %v", err)
			bt.RecordValidation(trace.ValidationRecord{RecordID: id, Accepted: false, Fields: []string{"<json>"}})
			continue
		}
		if sid, ok := raw[camp.MetaStartupID].(string); ok && sid != "" {
			id = sid
		}

		resp, err := predict(ctx, raw)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if fields, ok := rejectedFields(err); ok {
				logrus.WithFields(logrus.Fields{"line": line, "fields": fields}).Warn("Rejected invalid metrics")
				bt.RecordValidation(trace.ValidationRecord{RecordID: id, Accepted: false, Fields: fields})
				continue
			}
			logrus.WithFields(logrus.Fields{"line": line, "record": id}).Errorf("Prediction failed: %v", err)
			bt.RecordValidation(trace.ValidationRecord{RecordID: id, Accepted: true})
			bt.RecordPrediction(failedRecord(id, err))
			continue
		}
		bt.RecordValidation(trace.ValidationRecord{RecordID: resp.RecordID, Accepted: true})
		bt.RecordPrediction(predictionRecord(resp))
		if err := enc.Encode(resp); err != nil {
			return nil, fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return trace.Summarize(bt), nil
}

func rejectedFields(err error) ([]string, bool) {
	var verr *camp.ValidationError
	if errors.As(err, &verr) {
		return verr.FieldNames(), true
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		names := make([]string, len(apiErr.Fields))
		for i, f := range apiErr.Fields {
			names[i] = f.Field
		}
		return names, true
	}
	return nil, false
}

func failedRecord(id string, err error) trace.PredictionRecord {
	rec := trace.PredictionRecord{RecordID: id, Error: err.Error()}
	var aerr *camp.AggregationError
	if errors.As(err, &aerr) {
		rec.Attempted = len(aerr.Failures)
		for _, f := range aerr.Failures {
			rec.FailedAdapters = append(rec.FailedAdapters, string(f.Adapter))
		}
	}
	return rec
}

func predictionRecord(resp *report.Response) trace.PredictionRecord {
	rec := trace.PredictionRecord{
		RecordID:    resp.RecordID,
		Probability: resp.SuccessProbability,
		Confidence:  resp.Confidence,
		Verdict:     resp.Verdict,
		Succeeded:   resp.ModelsUsed,
		Attempted:   resp.ModelsAttempted,
	}
	lo, hi := 1.0, 0.0
	for _, b := range resp.Breakdown {
		if b.Probability == nil {
			rec.FailedAdapters = append(rec.FailedAdapters, b.Adapter)
			continue
		}
		lo = min(lo, *b.Probability)
		hi = max(hi, *b.Probability)
	}
	if hi >= lo {
		rec.Spread = hi - lo
	}
	return rec
}

func init() {
	predictCmd.Flags().StringVarP(&inputPath, "file", "f", "", "Input file (JSON or YAML object; JSON Lines with --batch; - for stdin)")
	predictCmd.Flags().BoolVar(&batchMode, "batch", false, "Read JSON Lines and print a trace summary")
	predictCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelDecisions), "Batch trace level: none or decisions")
	predictCmd.Flags().StringVar(&endpoint, "endpoint", "", "Score against a running server instead of locally, e.g. http://127.0.0.1:8080")
	predictCmd.Flags().StringVar(&modelsDir, "models", "", "Directory of model artifacts for local scoring (default: embedded)")
}
