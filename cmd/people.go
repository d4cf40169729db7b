package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vkadlec/face-attendance/internal/config"
	"github.com/vkadlec/face-attendance/internal/database"
	"github.com/vkadlec/face-attendance/internal/database/mariadb"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage enrolled people",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled people",
	RunE:  runPeopleList,
}

var peopleAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a person without face samples",
	Long: `Add a person to the roster. The person has no face samples yet and will
not be recognized until enrolled with the enroll command.`,
	Args: cobra.ExactArgs(1),
	RunE: runPeopleAdd,
}

var peopleRemoveCmd = &cobra.Command{
	Use:   "remove [uid]",
	Short: "Remove a person and their samples",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleRemove,
}

var peopleImportSISCmd = &cobra.Command{
	Use:   "import-sis",
	Short: "Import the roster from the school information system",
	Long: `Import students from the school information system (MariaDB) as people.
Imported people have no face samples yet; enroll them with the enroll command.
Existing people matched by SIS ID are updated, not duplicated. Use --class to
import one class, or --student to import a single student by SIS ID.`,
	RunE: runPeopleImportSIS,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleAddCmd)
	peopleCmd.AddCommand(peopleRemoveCmd)
	peopleCmd.AddCommand(peopleImportSISCmd)

	peopleAddCmd.Flags().String("sis-id", "", "School information system ID for this person")

	peopleImportSISCmd.Flags().String("class", "", "Import only students of this class")
	peopleImportSISCmd.Flags().String("student", "", "Import a single student by SIS ID")
	peopleImportSISCmd.Flags().Bool("dry-run", false, "Show what would be imported without writing")
}

func runPeopleAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg := config.Load()
	ctx := context.Background()

	repos, err := initBackend(ctx, cfg)
	if err != nil {
		return err
	}

	existing, err := repos.people.GetPersonByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up person: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("person %q already exists (%s)", existing.Name, existing.UID)
	}

	person := &database.StoredPerson{
		UID:    uuid.New().String(),
		Name:   name,
		SISID:  mustGetString(cmd, "sis-id"),
		Active: true,
	}
	if err := repos.people.SavePerson(ctx, person); err != nil {
		return fmt.Errorf("saving person: %w", err)
	}

	fmt.Printf("Added %s (%s)\n", person.Name, person.UID)
	return nil
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	repos, err := initBackend(ctx, cfg)
	if err != nil {
		return err
	}

	people, err := repos.people.ListPeople(ctx)
	if err != nil {
		return fmt.Errorf("listing people: %w", err)
	}

	if len(people) == 0 {
		fmt.Println("No people enrolled yet")
		return nil
	}

	fmt.Printf("%-38s %-25s %-12s %-8s %s\n", "UID", "NAME", "SIS ID", "ACTIVE", "SAMPLES")
	for _, p := range people {
		fmt.Printf("%-38s %-25s %-12s %-8t %d\n", p.UID, p.Name, p.SISID, p.Active, p.SampleCount)
	}
	fmt.Printf("\n%d people total\n", len(people))
	return nil
}

func runPeopleRemove(cmd *cobra.Command, args []string) error {
	uid := args[0]
	cfg := config.Load()
	ctx := context.Background()

	repos, err := initBackend(ctx, cfg)
	if err != nil {
		return err
	}

	person, err := repos.people.GetPerson(ctx, uid)
	if err != nil {
		return fmt.Errorf("looking up person: %w", err)
	}
	if person == nil {
		return fmt.Errorf("person %s not found", uid)
	}

	removed, err := repos.people.DeletePerson(ctx, uid)
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	saveHNSWIndex()

	fmt.Printf("Removed %s (%d samples deleted)\n", person.Name, len(removed))
	return nil
}

// loadRoster picks the students to import. A class filter is validated
// against the roster's known classes so a typo fails loudly instead of
// importing nothing.
func loadRoster(ctx context.Context, sis *mariadb.Pool, className, studentID string) ([]mariadb.Student, error) {
	if studentID != "" {
		student, err := sis.GetStudent(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("loading student: %w", err)
		}
		return []mariadb.Student{*student}, nil
	}

	if className != "" {
		classes, err := sis.ListClasses(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing classes: %w", err)
		}
		if !slices.Contains(classes, className) {
			return nil, fmt.Errorf("unknown class %q, known classes: %s", className, strings.Join(classes, ", "))
		}
	}

	students, err := sis.GetStudents(ctx, className)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	return students, nil
}

// findPersonBySISID scans enrolled people for a matching SIS ID.
func findPersonBySISID(people []database.StoredPerson, sisID string) *database.StoredPerson {
	for i := range people {
		if people[i].SISID == sisID {
			return &people[i]
		}
	}
	return nil
}

func runPeopleImportSIS(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	if cfg.SIS.DatabaseURL == "" {
		return errors.New("SIS_DATABASE_URL environment variable is required")
	}

	sis, err := mariadb.NewPool(cfg.SIS.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to SIS database: %w", err)
	}
	defer sis.Close()

	students, err := loadRoster(ctx, sis, mustGetString(cmd, "class"), mustGetString(cmd, "student"))
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d students from SIS\n", len(students))

	dryRun := mustGetBool(cmd, "dry-run")
	if dryRun {
		for _, s := range students {
			fmt.Printf("  %s (%s, class %s, active %t)\n", s.FullName(), s.ID, s.ClassName, s.Active)
		}
		return nil
	}

	repos, err := initBackend(ctx, cfg)
	if err != nil {
		return err
	}

	existing, err := repos.people.ListPeople(ctx)
	if err != nil {
		return fmt.Errorf("listing people: %w", err)
	}

	var created, updated int
	for _, s := range students {
		person := findPersonBySISID(existing, s.ID)
		if person == nil {
			person = &database.StoredPerson{
				UID:    uuid.New().String(),
				Name:   s.FullName(),
				SISID:  s.ID,
				Active: s.Active,
			}
			created++
		} else {
			person.Name = s.FullName()
			person.Active = s.Active
			updated++
		}
		if err := repos.people.SavePerson(ctx, person); err != nil {
			return fmt.Errorf("saving %s: %w", s.FullName(), err)
		}
	}

	fmt.Printf("Imported roster: %d created, %d updated\n", created, updated)
	return nil
}
