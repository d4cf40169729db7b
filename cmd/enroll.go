package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vkadlec/face-attendance/internal/config"
	"github.com/vkadlec/face-attendance/internal/constants"
	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/recognizer"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [name] [image-dir]",
	Short: "Enroll a person from a directory of face photos",
	Long: `Enroll a person by computing face embeddings from a directory of photos.
Each photo should contain exactly one clearly visible face of the person.
At least ` + fmt.Sprint(constants.MinEnrollSamples) + ` usable photos are required for reliable matching.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("sis-id", "", "School information system ID for this person")
	enrollCmd.Flags().Bool("replace", false, "Replace existing samples instead of appending")
}

// listImageFiles returns the JPEG and PNG files in a directory, sorted by name.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	imageDir := args[1]
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}

	cfg := config.Load()
	ctx := context.Background()

	files, err := listImageFiles(imageDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", imageDir)
	}
	if len(files) > constants.MaxEnrollSamples {
		fmt.Printf("Found %d images, using the first %d\n", len(files), constants.MaxEnrollSamples)
		files = files[:constants.MaxEnrollSamples]
	}

	repos, err := initBackend(ctx, cfg)
	if err != nil {
		return err
	}

	client := recognizer.NewClient(cfg.Recognizer.URL, cfg.Recognizer.Model, cfg.Recognizer.Timeout)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("recognition server not reachable: %w", err)
	}

	// Find or create the person
	person, err := repos.people.GetPersonByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up person: %w", err)
	}
	if person == nil {
		person = &database.StoredPerson{
			UID:    uuid.New().String(),
			Name:   name,
			SISID:  mustGetString(cmd, "sis-id"),
			Active: true,
		}
		if err := repos.people.SavePerson(ctx, person); err != nil {
			return fmt.Errorf("creating person: %w", err)
		}
		fmt.Printf("Created person %s (%s)\n", person.Name, person.UID)
	} else {
		fmt.Printf("Adding samples to existing person %s (%s)\n", person.Name, person.UID)
	}

	if mustGetBool(cmd, "replace") {
		removed, err := repos.samples.DeleteSamplesByPerson(ctx, person.UID)
		if err != nil {
			return fmt.Errorf("removing old samples: %w", err)
		}
		if len(removed) > 0 {
			fmt.Printf("Removed %d existing samples\n", len(removed))
		}
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Computing embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var samples []database.StoredSample
	var skipped []string
	for _, file := range files {
		imageData, err := os.ReadFile(file)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", filepath.Base(file), err))
			bar.Add(1)
			continue
		}

		result, err := client.DetectFaces(ctx, imageData)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", filepath.Base(file), err))
			bar.Add(1)
			continue
		}

		// Enrollment photos must contain exactly one face
		if result.FacesCount != 1 {
			skipped = append(skipped, fmt.Sprintf("%s: expected 1 face, found %d", filepath.Base(file), result.FacesCount))
			bar.Add(1)
			continue
		}

		face := result.Faces[0]
		samples = append(samples, database.StoredSample{
			PersonUID:  person.UID,
			PersonName: person.Name,
			Embedding:  face.Embedding,
			Model:      result.Model,
			Dim:        face.Dim,
			Source:     filepath.Base(file),
		})
		bar.Add(1)
	}
	fmt.Println()

	for _, s := range skipped {
		fmt.Printf("Skipped %s\n", s)
	}

	if len(samples) == 0 {
		return fmt.Errorf("no usable face samples found in %s", imageDir)
	}

	if err := repos.samples.SaveSamples(ctx, person.UID, samples); err != nil {
		return fmt.Errorf("saving samples: %w", err)
	}
	saveHNSWIndex()

	fmt.Printf("Enrolled %d samples for %s\n", len(samples), person.Name)
	if len(samples) < constants.MinEnrollSamples {
		fmt.Printf("Warning: fewer than %d samples, matching may be unreliable\n", constants.MinEnrollSamples)
	}
	return nil
}
