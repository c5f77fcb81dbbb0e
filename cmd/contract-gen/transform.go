package main

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"contractgen/internal/contract"
	"contractgen/internal/schema"
)

func newTransformCmd(a *app) *cobra.Command {
	var (
		out            outputFlags
		id             string
		sourcePath     string
		destPath       string
		batchSize      int
		errorThreshold float64
		mapFields      bool
	)
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Generate a transformation contract linking a source to a destination",
		Long: `Generate a transformation contract linking a source to a destination.

Both inputs are JSON contract files written by the source and
destination commands. With --map-fields, destination fields are paired
with source fields of the same name.`,
		Example: "  contract-gen transform --source contracts/source.json --destination contracts/dest.json --map-fields --pretty",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := readSource(absPath(sourcePath))
			if err != nil {
				return err
			}
			dst, err := readDestination(absPath(destPath))
			if err != nil {
				return err
			}

			md := map[string]any{}
			if cmd.Flags().Changed("batch-size") {
				md["batch_size"] = batchSize
			}
			if cmd.Flags().Changed("error-threshold") {
				md["error_threshold"] = errorThreshold
			}

			start := time.Now()
			t, err := contract.Transformation(contract.TransformOptions{
				ID:          id,
				Metadata:    md,
				Source:      src,
				Destination: dst,
				MapFields:   mapFields,
			})
			a.observe("transformation", start, 0, err)
			if err != nil {
				return generationError(err, hintContracts, failedTransformation)
			}
			return a.emit(cmd, out, t)
		},
	}
	out.register(cmd)
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "Unique identifier for this transformation (default: transform_<uuid>)")
	f.StringVar(&sourcePath, "source", "", "Source contract file")
	f.StringVar(&destPath, "destination", "", "Destination contract file")
	f.IntVar(&batchSize, "batch-size", schema.DefaultExecutionPlan().BatchSize, "Rows per batch")
	f.Float64Var(&errorThreshold, "error-threshold", schema.DefaultExecutionPlan().ErrorThreshold, "Tolerated error ratio between 0 and 1")
	f.BoolVar(&mapFields, "map-fields", false, "Build field mappings by matching field names")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

func readContractFile(path string) ([]byte, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, &cliError{msg: "Permission denied: " + path, hint: hintPermissions}
		}
		return nil, &cliError{msg: err.Error(), hint: hintPath}
	}
	return data, nil
}

func readSource(path string) (schema.SourceContract, error) {
	data, err := readContractFile(path)
	if err != nil {
		return nil, err
	}
	c, err := schema.DecodeSourceContract(data)
	if err != nil {
		return nil, &cliError{msg: "Invalid source contract " + path + ": " + err.Error(), hint: hintContracts}
	}
	return c, nil
}

func readDestination(path string) (*schema.DestinationContract, error) {
	data, err := readContractFile(path)
	if err != nil {
		return nil, err
	}
	c, err := schema.DecodeContract(data)
	if err != nil {
		return nil, &cliError{msg: "Invalid destination contract " + path + ": " + err.Error(), hint: hintContracts}
	}
	d, ok := c.(*schema.DestinationContract)
	if !ok {
		return nil, &cliError{msg: "Not a destination contract: " + path + " has contract_type '" + c.Kind() + "'", hint: hintContracts}
	}
	return d, nil
}
