package main

import (
	"book-portal/internal/core"
	"book-portal/internal/core/model"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app, register bool) *cobra.Command {
	var username, password string
	use, short := "login", "Start a session"
	if register {
		use, short = "register", "Create an account and start a session"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := a.sessionStore(ctx, nil)
			if err != nil {
				return err
			}
			authenticate := a.client.Login
			if register {
				authenticate = a.client.Register
			}
			tok, err := authenticate(ctx, username, password)
			if err != nil {
				return userError(err)
			}
			sess, err := session.Login(ctx, tok)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "Sesión iniciada (%s).\n", sess.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.sessionStore(cmd.Context(), nil)
			if err != nil {
				return err
			}
			session.Logout(cmd.Context())
			fmt.Fprintln(a.out, "Sesión cerrada.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.sessionStore(cmd.Context(), a.cliNavigator())
			if err != nil {
				return err
			}
			sess, ok := session.Get()
			if !ok {
				fmt.Fprintln(a.out, "anonymous")
				return nil
			}
			fmt.Fprintf(a.out, "%s\t%s\n", sess.EntityID, sess.Role)
			return nil
		},
	}
}

// pageFlags are shared by every listing command.
type pageFlags struct {
	page int
	size int
}

func (f *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&f.size, "size", 0, "Page size (defaults to --page-size)")
}

func (f *pageFlags) query(a *app) model.PageQuery {
	size := f.size
	if size < 1 {
		size = a.cfg.PageSize
	}
	return model.PageQuery{Page: max(f.page, 1), PageSize: size, Filters: map[string]string{}}
}

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "books", Short: "Browse the catalog"}

	var pf pageFlags
	var title, author, genre string
	list := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			nav := a.cliNavigator()
			session, err := a.sessionStore(ctx, nav)
			if err != nil {
				return err
			}
			view := core.NewView(
				core.NewQueryBinder(core.RouteHome, a.cfg.PageSize, nav, []string{"title", "author", "genre"}),
				core.NewFetcher(core.BookSource(a.client), session, a.log, core.WithPublicAccess()),
			)
			q := pf.query(a)
			for k, v := range map[string]string{"title": title, "author": author, "genre": genre} {
				if v != "" {
					q.Filters[k] = v
				}
			}
			st := view.SetQuery(ctx, q)
			if st.Err != nil {
				return userError(st.Err)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTÍTULO\tAUTORES\tFORMATOS")
			for _, b := range st.Data.Items {
				formats := make([]string, 0, len(b.Formats))
				for _, f := range b.Formats {
					formats = append(formats, string(f))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.Title, strings.Join(b.Authors, ", "), strings.Join(formats, ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printFooter(a, view.Binder, st.Data)
			return nil
		},
	}
	pf.register(list)
	list.Flags().StringVar(&title, "title", "", "Title or subtitle contains")
	list.Flags().StringVar(&author, "author", "", "Any author contains")
	list.Flags().StringVar(&genre, "genre", "", "Genre")
	cmd.AddCommand(list)
	return cmd
}

func printFooter[T any](a *app, b *core.QueryBinder, data *model.PagedResult[T]) {
	if len(data.Items) == 0 {
		fmt.Fprintln(a.out, "Sin resultados.")
	}
	fmt.Fprintf(a.out, "Página %d de %d (%d en total) · %s\n", data.CurrentPage, max(data.TotalPages, 1), data.TotalItems, b.Href(b.Read()))
}

func queueController(a *app, cmd *cobra.Command, queueName string) (*core.ModerationController, error) {
	queue, ok := model.ParseQueue(queueName)
	if !ok {
		return nil, fmt.Errorf("unknown queue %q (author-requests or suggestions)", queueName)
	}
	wf, _ := core.WorkflowFor(queue)
	nav := a.cliNavigator()
	session, err := a.sessionStore(cmd.Context(), nav)
	if err != nil {
		return nil, err
	}
	binder := core.NewModerationBinder("/admin/"+string(queue), a.cfg.PageSize, nav)
	return core.NewModerationController(wf, a.client, session, binder, a.log), nil
}

func printQueue(a *app, c *core.ModerationController, st core.FetchState[model.ModerationItem]) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTÍTULO\tSOLICITANTE\tESTADO")
	for _, it := range st.Data.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Title, it.Submitter, it.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printFooter(a, c.View().Binder, st.Data)
	return nil
}

func newQueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "queue", Short: "Moderate author requests and book suggestions (administrators)"}

	var pf pageFlags
	var status string
	list := &cobra.Command{
		Use:   "list <queue>",
		Short: "List a queue by status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queueController(a, cmd, args[0])
			if err != nil {
				return err
			}
			st, ok := model.ParseStatus(status)
			if !ok {
				return fmt.Errorf("unknown status %q", status)
			}
			q := pf.query(a)
			c.View().Binder.Write(q)
			fs, err := c.ListByStatus(cmd.Context(), st, q.Page)
			if err != nil {
				return userError(err)
			}
			return printQueue(a, c, fs)
		},
	}
	pf.register(list)
	list.Flags().StringVar(&status, "status", string(model.StatusPending), "Status tab")

	var from string
	transition := &cobra.Command{
		Use:   "transition <queue> <id> <status>",
		Short: "Move one item to another status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := queueController(a, cmd, args[0])
			if err != nil {
				return err
			}
			fromStatus, ok := model.ParseStatus(from)
			if !ok {
				return fmt.Errorf("unknown status %q", from)
			}
			target, ok := model.ParseStatus(args[2])
			if !ok {
				return fmt.Errorf("unknown status %q", args[2])
			}
			c.View().Binder.SetFilter(core.FilterStatus, string(fromStatus))
			if err := c.Transition(cmd.Context(), args[1], target); err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "%s → %s\n", args[1], target)
			st := c.View().State()
			if st.Err != nil || st.Data == nil {
				return userError(st.Err)
			}
			return printQueue(a, c, st)
		},
	}
	transition.Flags().StringVar(&from, "from", string(model.StatusPending), "Status the item is in now")

	cmd.AddCommand(list, transition)
	return cmd
}

func newFormatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "formats", Short: "Edit the formats a book is held in"}
	for _, op := range []model.Op{model.OpAdd, model.OpRemove} {
		cmd.AddCommand(&cobra.Command{
			Use:   op.String() + " <book-id> <format>",
			Short: strings.ToUpper(op.String()[:1]) + op.String()[1:] + " one format",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, ok := model.ParseFormat(args[1])
				if !ok {
					return fmt.Errorf("unknown format %q", args[1])
				}
				session, err := a.sessionStore(cmd.Context(), a.cliNavigator())
				if err != nil {
					return err
				}
				coord := core.NewFlagCoordinator(core.FormatCommit(a.client), session, a.log)
				set, err := coord.Apply(cmd.Context(), model.Mutation[model.Format]{Owner: args[0], Flag: f, Op: op})
				if err != nil {
					return userError(err)
				}
				values := make([]string, 0, set.Len())
				for _, v := range set.Values() {
					values = append(values, string(v))
				}
				fmt.Fprintf(a.out, "%s: %s\n", args[0], strings.Join(values, ", "))
				return nil
			},
		})
	}
	return cmd
}

func newShelvesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "shelves", Short: "Manage your shelves"}

	var pf pageFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List your shelves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nav := a.cliNavigator()
			session, err := a.sessionStore(cmd.Context(), nav)
			if err != nil {
				return err
			}
			if d := core.Check(core.RequireSession, session.Role()); !d.Allowed {
				nav.Navigate(d.Redirect)
				return userError(model.AuthorityError{Err: model.ErrNoSession})
			}
			view := core.NewView(
				core.NewQueryBinder("/shelves", a.cfg.PageSize, nav, nil),
				core.NewFetcher(core.ShelfSource(a.client), session, a.log),
			)
			st := view.SetQuery(cmd.Context(), pf.query(a))
			if st.Err != nil {
				return userError(st.Err)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNOMBRE\tLIBROS")
			for _, s := range st.Data.Items {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", s.ID, s.Name, s.BookCount)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printFooter(a, view.Binder, st.Data)
			return nil
		},
	}
	pf.register(list)

	del := &cobra.Command{
		Use:   "delete <shelf-id>",
		Short: "Delete one shelf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.sessionStore(cmd.Context(), a.cliNavigator())
			if err != nil {
				return err
			}
			sess, _ := session.Get()
			coord := core.NewFlagCoordinator(core.ShelfCommit(a.client), session, a.log)
			set, err := coord.Apply(cmd.Context(), model.Mutation[string]{Owner: sess.EntityID, Flag: args[0], Op: model.OpRemove})
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(a.out, "Estanterías restantes: %d\n", set.Len())
			return nil
		},
	}
	cmd.AddCommand(list, del)
	return cmd
}
