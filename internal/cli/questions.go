package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quarryworks/foreman/internal/domain"
	"github.com/quarryworks/foreman/internal/errors"
)

// AddQuestionsCommand adds the questions command to the root command.
func AddQuestionsCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List pending worker questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuestions(cmd, flags)
		},
	}
	root.AddCommand(cmd)
}

// runQuestions lists questions awaiting an answer, oldest first.
func runQuestions(cmd *cobra.Command, flags *GlobalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	questions, err := st.ListQuestions(cmd.Context(), domain.QuestionPending)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return printJSON(cmd, questions)
	}

	if len(questions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no pending questions")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAGENT\tTASK\tASKED\tQUESTION")
	for _, q := range questions {
		taskRef := "-"
		if q.TaskID > 0 {
			taskRef = fmt.Sprintf("%d", q.TaskID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			q.ID, q.Agent, taskRef, q.CreatedAt.Format("2006-01-02 15:04"), q.Question)
	}
	return w.Flush()
}

// AddAnswerCommand adds the answer command to the root command.
func AddAnswerCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "answer <text>",
		Short: "Answer the oldest pending question",
		Long: `Answer records the given text as the answer to the oldest pending worker
question. Workers poll for their answers on the next attempt; answering never
mutates the task the question belongs to.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnswer(cmd, flags, strings.Join(args, " "))
		},
	}
	root.AddCommand(cmd)
}

// runAnswer answers the oldest pending question with the given text.
func runAnswer(cmd *cobra.Command, flags *GlobalFlags, answer string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return errors.Wrap(errors.ErrInvalidArgument, "answer text cannot be empty")
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	q, err := st.AnswerOldest(cmd.Context(), answer)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		return printJSON(cmd, q)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "answered question %d from %s: %s\n", q.ID, q.Agent, q.Question)
	return nil
}
