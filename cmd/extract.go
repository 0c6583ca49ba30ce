package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quote-parser/internal/extract"
	"github.com/sells-group/quote-parser/internal/quote"
	"github.com/sells-group/quote-parser/pkg/openai"
)

var (
	extractInput  string
	extractOut    string
	extractPrompt string
	extractModel  string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract quote data from local files in batch",
	Long:  "Runs text extraction and LLM parsing over a file or directory of .pdf, .html/.htm, and .txt inputs, writing one JSON record per input.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.OpenAI.APIKey == "" {
			return eris.New("OPENAI_API_KEY not set")
		}

		model := extractModel
		if model == "" {
			model = cfg.OpenAI.Model
		}
		promptPath := extractPrompt
		if promptPath == "" {
			promptPath = cfg.Extract.PromptPath
		}

		llm := openai.NewClient(cfg.OpenAI.APIKey,
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithModel(model),
		)
		proc := quote.NewProcessor(llm, promptPath)
		extractor := extract.NewLocal(cfg.Extract.PdfToTextPath, cfg.Extract.MaxChars)

		inputs, err := discoverInputs(extractInput)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(extractOut, 0o755); err != nil {
			return eris.Wrap(err, "create output directory")
		}

		zap.L().Info("batch extraction", zap.Int("files", len(inputs)), zap.String("model", model))

		for _, path := range inputs {
			if err := processOne(cmd, proc, extractor, path); err != nil {
				zap.L().Error("failed on file", zap.String("path", path), zap.Error(err))
			}
		}

		return nil
	},
}

func processOne(cmd *cobra.Command, proc *quote.Processor, extractor extract.Extractor, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}

	text, err := extractor.Extract(cmd.Context(), data, filepath.Ext(path))
	if err != nil {
		return err
	}

	record, err := proc.Process(cmd.Context(), text, quote.LabelFile)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal record")
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(extractOut, stem+".json")
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", outPath)
	}

	zap.L().Info("extracted", zap.String("input", path), zap.String("output", outPath))
	return nil
}

func discoverInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, eris.Wrapf(err, "stat %s", input)
	}

	if !info.IsDir() {
		if !supportedFile(input) {
			return nil, eris.Errorf("unsupported file type: %s", filepath.Ext(input))
		}
		return []string{input}, nil
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", input)
	}

	var inputs []string
	for _, e := range entries {
		path := filepath.Join(input, e.Name())
		if !e.IsDir() && supportedFile(path) {
			inputs = append(inputs, path)
		}
	}
	sort.Strings(inputs)
	return inputs, nil
}

func supportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".html", ".htm", ".txt":
		return true
	default:
		return false
	}
}

func init() {
	extractCmd.Flags().StringVar(&extractInput, "input", "", "path to a file or directory (.pdf, .html/.htm, .txt)")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "output directory for JSON")
	extractCmd.Flags().StringVar(&extractPrompt, "prompt", "", "custom system prompt file")
	extractCmd.Flags().StringVar(&extractModel, "model", "", "OpenAI model (default from config)")
	_ = extractCmd.MarkFlagRequired("input")
	_ = extractCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(extractCmd)
}
