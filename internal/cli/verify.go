package cli

import (
	"errors"
	"fmt"

	"course-progress-service/internal/app"
	"course-progress-service/internal/domain"
	"github.com/spf13/cobra"
)

// NewVerifyCmd prints a learner's certificate for a course.
func NewVerifyCmd(configPath *string) *cobra.Command {
	var userID, courseID string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Show the certificate and verification ID for a learner and course",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := openBackends(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			engine := app.NewCertificationEngine(b.store, b.courses, log)
			cert, err := engine.Certificate(cmd.Context(), userID, courseID)
			if errors.Is(err, domain.ErrCertificateNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "no certificate for user %s in course %s\n", userID, courseID)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "course:          %s (%s)\n", cert.CourseTitle, cert.CourseID)
			fmt.Fprintf(cmd.OutOrStdout(), "user:            %s\n", cert.UserID)
			fmt.Fprintf(cmd.OutOrStdout(), "verification id: %s\n", cert.VerificationID)
			fmt.Fprintf(cmd.OutOrStdout(), "issued at:       %s\n", cert.IssuedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "learner id")
	cmd.Flags().StringVar(&courseID, "course", "", "course id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}
