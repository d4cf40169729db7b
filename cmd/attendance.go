package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkadlec/face-attendance/internal/config"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Query attendance records",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance marks for a day",
	RunE:  runAttendanceList,
}

var attendancePersonCmd = &cobra.Command{
	Use:   "person [uid]",
	Short: "List all attendance marks for one person",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendancePerson,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)
	attendanceCmd.AddCommand(attendancePersonCmd)

	attendanceListCmd.Flags().String("date", "", "Day to list (YYYY-MM-DD, default today)")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	day := time.Now()
	if date := mustGetString(cmd, "date"); date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 0, 1)

	repos, err := initBackend(ctx, cfg)
	if err != nil {
		return err
	}

	marks, err := repos.attendance.ListMarks(ctx, from, to)
	if err != nil {
		return fmt.Errorf("listing attendance: %w", err)
	}

	fmt.Printf("Attendance for %s\n\n", from.Format("2006-01-02"))
	if len(marks) == 0 {
		fmt.Println("No marks recorded")
		return nil
	}

	fmt.Printf("%-10s %-25s %-38s %s\n", "TIME", "NAME", "PERSON UID", "SESSION")
	for _, m := range marks {
		fmt.Printf("%-10s %-25s %-38s %s\n",
			m.MarkedAt.Local().Format("15:04:05"), m.PersonName, m.PersonUID, m.SessionID)
	}
	fmt.Printf("\n%d marks total\n", len(marks))
	return nil
}

func runAttendancePerson(cmd *cobra.Command, args []string) error {
	uid := args[0]
	cfg := config.Load()
	ctx := context.Background()

	repos, err := initBackend(ctx, cfg)
	if err != nil {
		return err
	}

	marks, err := repos.attendance.ListMarksByPerson(ctx, uid)
	if err != nil {
		return fmt.Errorf("listing attendance: %w", err)
	}

	if len(marks) == 0 {
		fmt.Printf("No marks recorded for %s\n", uid)
		return nil
	}

	fmt.Printf("%-25s %-25s %s\n", "MARKED AT", "NAME", "SESSION")
	for _, m := range marks {
		fmt.Printf("%-25s %-25s %s\n",
			m.MarkedAt.Local().Format(time.RFC3339), m.PersonName, m.SessionID)
	}
	fmt.Printf("\n%d marks total\n", len(marks))
	return nil
}
