// Command probe-knowledge checks the configured Azure OpenAI deployment end to
// end: one interaction lookup and one structured generation per prompt kind.
//
//	probe-knowledge [medicationA medicationB]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/analytics"
	"github.com/emeeran/phrm-diag-sub000/internal/azure"
	"github.com/emeeran/phrm-diag-sub000/internal/config"
	"github.com/emeeran/phrm-diag-sub000/internal/knowledge"
	"github.com/emeeran/phrm-diag-sub000/internal/retry"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if !cfg.Azure.OpenAI.Enabled() {
		logger.Fatal("missing Azure OpenAI credentials. Set AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY and AZURE_OPENAI_DEPLOYMENT")
	}

	medA, medB := "Warfarin", "Ibuprofen"
	if len(os.Args) == 3 {
		medA, medB = os.Args[1], os.Args[2]
	}

	openAIClient, err := azure.NewOpenAIClient(cfg.Azure.OpenAI.Endpoint, cfg.Azure.OpenAI.APIKey, cfg.Azure.OpenAI.Deployment, logger)
	if err != nil {
		logger.Fatal("failed to create OpenAI client", zap.Error(err))
	}
	logger.Info("probing deployment", zap.String("deployment", openAIClient.Deployment()))
	client := knowledge.NewClient(openAIClient,
		knowledge.NewLimiter(cfg.Analytics.LookupRate, cfg.Analytics.LookupBurst), nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failed := 0

	logger.Info("probing interaction lookup", zap.String("medication_a", medA), zap.String("medication_b", medB))
	if err := probeLookup(ctx, client, cfg.Analytics.InteractionPolicy(), medA, medB, logger); err != nil {
		logger.Error("interaction lookup failed", zap.Error(err))
		failed++
	}

	digest := analytics.Digest(sampleRecords(), analytics.DefaultDigestLimit)
	for _, kind := range knowledge.Kinds() {
		var raw []byte
		err := retry.Do(ctx, cfg.Analytics.GenerationPolicy(), logger, "probe "+kind, func(ctx context.Context) error {
			var err error
			raw, err = client.GenerateStructured(ctx, kind, digest)
			return err
		})
		if err != nil {
			logger.Error("generation failed", zap.String("kind", kind), zap.Error(err))
			failed++
			continue
		}
		logger.Info("generation succeeded",
			zap.String("kind", kind),
			zap.Int("bytes", len(raw)),
		)
	}

	if failed > 0 {
		logger.Error("knowledge probe finished with failures", zap.Int("failed", failed))
		os.Exit(1)
	}
	logger.Info("knowledge probe passed")
}

func probeLookup(ctx context.Context, client *knowledge.Client, policy retry.Policy, medA, medB string, logger *zap.Logger) error {
	var interactions []string
	err := retry.Do(ctx, policy, logger, "probe interaction lookup", func(ctx context.Context) error {
		var err error
		interactions, err = client.LookupInteraction(ctx, medA, medB)
		return err
	})
	if err != nil {
		return err
	}
	logger.Info("interaction lookup succeeded", zap.Strings("interactions", interactions))
	return nil
}

func sampleRecords() []model.HealthRecord {
	day := func(n int) time.Time { return time.Now().UTC().AddDate(0, 0, -n) }
	return []model.HealthRecord{
		{Category: model.CategoryVitalSigns, Title: "Blood Pressure", Description: "135/88 mmHg", Date: day(14)},
		{Category: model.CategoryVitalSigns, Title: "Blood Pressure", Description: "128/84 mmHg", Date: day(7)},
		{Category: model.CategoryMedications, Title: "Lisinopril", Description: "10mg daily, 30 day supply", Date: day(20)},
		{Category: model.CategorySymptoms, Title: "Headache", Description: "severity: 4 after poor sleep", Date: day(3)},
		{Category: model.CategoryLabResults, Title: "Cholesterol", Description: "total cholesterol 215 mg/dL", Date: day(30)},
	}
}
