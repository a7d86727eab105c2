package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/formai/engine/internal/submissions"
)

func main() {
	// Use default data directory (same as running server)
	dataDir := "./data"
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}

	ctx := context.Background()

	st, err := storage.NewBuilder().
		WithDataDir(dataDir).
		BuildAndStart(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build storage: %v\n", err)
		os.Exit(1)
	}
	defer st.Close(ctx)

	store, err := forms.NewStore(ctx, st.FormsDB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open forms store: %v\n", err)
		os.Exit(1)
	}
	manager := forms.NewManager(store, st.Provisioner(), schema.NewValidator())
	subs := submissions.NewService(manager, st.Provisioner())

	samples := []struct {
		name        string
		schema      schema.Schema
		publish     bool
		public      bool
		submissions []map[string]any
	}{
		{
			name:    "Contact",
			schema:  contactSchema(),
			publish: true,
			public:  true,
			submissions: []map[string]any{
				{"full_name": "Ana Martin", "email": "ana@example.com", "message": "Bonjour"},
				{"full_name": "Louis Petit", "email": "louis@example.com"},
				{"full_name": "Chloé Bernard", "email": "chloe@example.com", "message": "Merci !"},
			},
		},
		{
			name:    "Demande de congé",
			schema:  leaveSchema(),
			publish: true,
			submissions: []map[string]any{
				{"employee": "Ana Martin", "start_date": "2026-07-01", "days": float64(5), "leave_type": "paid"},
			},
		},
		{
			name:   "Sondage interne",
			schema: contactSchema(),
		},
	}

	fmt.Println("Creating forms...")
	for _, s := range samples {
		input := forms.CreateInput{
			Name:         s.name,
			Schema:       s.schema,
			Organization: "default",
			CreatedBy:    "seed",
		}
		if s.public {
			input.AccessControl = &forms.AccessControl{IsPublic: true}
		}

		f, err := manager.Create(ctx, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create form %q: %v\n", s.name, err)
			continue
		}
		fmt.Printf("Created form: %s (%s, slug %s)\n", f.Name, f.ID, f.Slug)

		if !s.publish {
			continue
		}
		if _, err := manager.Publish(ctx, f.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to publish form %s: %v\n", f.ID, err)
			continue
		}

		for i, data := range s.submissions {
			rec, err := subs.Create(ctx, f.ID, submissions.CreateInput{
				Data: data,
				Metadata: namespace.Metadata{
					SubmittedBy: "seed",
					SubmittedAt: time.Now().UTC(),
					Source:      namespace.SourceAPI,
				},
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to submit record %d: %v\n", i+1, err)
				continue
			}
			fmt.Printf("  Stored submission %d: ID=%s\n", i+1, rec.ID)
		}
	}

	fmt.Println("\nDone! List them with: curl -H 'X-User-ID: seed' -H 'X-Organization-ID: default' http://localhost:8080/api/v1/forms")
}

func contactSchema() schema.Schema {
	return schema.Schema{
		Fields: []schema.Field{
			{ID: "c1", Type: schema.TypeText, Label: "Nom complet", Name: "full_name", Required: true},
			{ID: "c2", Type: schema.TypeEmail, Label: "Adresse email", Name: "email", Required: true},
			{ID: "c3", Type: schema.TypeTextarea, Label: "Message", Name: "message"},
		},
	}
}

func leaveSchema() schema.Schema {
	minDays := float64(1)
	maxDays := float64(30)
	return schema.Schema{
		Fields: []schema.Field{
			{ID: "l1", Type: schema.TypeText, Label: "Employé", Name: "employee", Required: true},
			{ID: "l2", Type: schema.TypeDate, Label: "Début", Name: "start_date", Required: true},
			{ID: "l3", Type: schema.TypeNumber, Label: "Nombre de jours", Name: "days", Required: true,
				Validation: &schema.FieldValidation{Min: &minDays, Max: &maxDays}},
			{ID: "l4", Type: schema.TypeRadio, Label: "Type", Name: "leave_type", Required: true,
				Options: []schema.Option{{Label: "Payé", Value: "paid"}, {Label: "Maladie", Value: "sick"}}},
		},
	}
}
