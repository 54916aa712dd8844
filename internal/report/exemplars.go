package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/KaramelBytes/dqaudit-cli/internal/sink"
)

// DocumentTitle heads the exemplar document.
const DocumentTitle = "HL7 Error Examples"

// Exemplars fetches the stored message behind every finding and lays them out
// as document sections. An accession that cannot be fetched is logged and
// skipped; the returned slice lists them. Context cancellation stops early.
func Exemplars(ctx context.Context, f MessageFetcher, log *slog.Logger, anomalies []audit.ThresholdAnomaly, violations []audit.DateOrderViolation) (*sink.Document, []string) {
	doc := sink.NewDocument(DocumentTitle)
	var skipped []string
	add := func(heading, accession, resultText string) {
		if ctx.Err() != nil {
			skipped = append(skipped, accession)
			return
		}
		msg, err := f.FetchMessage(ctx, accession, resultText)
		if err != nil {
			log.Warn("exemplar skipped", slog.String("accession", accession), slog.Any("error", err))
			skipped = append(skipped, accession)
			return
		}
		doc.AddHeading(1, heading)
		doc.AddParagraph(fmt.Sprintf("Accession: %s | Result test: %s", accession, resultText))
		doc.AddParagraph(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\r", "\n"))
	}
	for _, a := range anomalies {
		add("THRESHOLD ERROR: "+a.Field, a.Accession, a.ResultText)
	}
	for _, v := range violations {
		add("DATE ERROR: "+v.Detail, v.Accession, v.ResultText)
	}
	return doc, skipped
}
