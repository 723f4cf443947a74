package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/projetocrm/consultas/internal/appointment"
	"github.com/projetocrm/consultas/internal/whatsapp"
)

func loginCmd(opts *rootOptions) *cobra.Command {
	var user, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtém um token de acesso",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			token, err := a.repo.Login(cmd.Context(), user, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export API_TOKEN=%q\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "usuario", "", "usuário")
	cmd.Flags().StringVar(&password, "senha", "", "senha")
	_ = cmd.MarkFlagRequired("usuario")
	_ = cmd.MarkFlagRequired("senha")
	return cmd
}

func patientCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paciente <cpf>",
		Short: "Busca um paciente pelo CPF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			res := a.workflow().CommitDocument(cmd.Context(), args[0])
			if !res.Found {
				return errReported
			}
			p := res.Patient
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%d\nNome\t%s\nCPF\t%s\nTelefone\t%s\nE-mail\t%s\nConvênio\t%s\n",
				p.ID, p.Name, p.CPF, p.Phone, p.Email, yesNo(p.Insurance))
			return w.Flush()
		},
	}
}

func practitionersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "medicos [especialidade]",
		Short: "Lista médicos, opcionalmente de uma especialidade",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}

			var list []appointment.Practitioner
			if len(args) == 1 {
				specialty, err := appointment.ParseSpecialty(args[0])
				if err != nil {
					return err
				}
				list, err = a.svc.ListBySpecialty(cmd.Context(), specialty)
				if err != nil {
					return a.fail(err)
				}
			} else {
				list, err = a.svc.ListAll(cmd.Context())
				if err != nil {
					return a.fail(err)
				}
			}
			return printPractitioners(cmd.OutOrStdout(), list)
		},
	}
}

func appointmentsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consultas",
		Short: "Lista as consultas cadastradas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			list, err := a.svc.ListAppointments(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			return printAppointments(cmd.OutOrStdout(), list)
		},
	}
}

type scheduleOptions struct {
	cpf            string
	specialty      string
	practitionerID int64
	complaint      string
	dateTime       string
	status         string
	payment        string
}

func scheduleCmd(opts *rootOptions) *cobra.Command {
	so := &scheduleOptions{}
	cmd := &cobra.Command{
		Use:   "agendar",
		Short: "Cadastra uma nova consulta e gera a mensagem de WhatsApp",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			wf := a.workflow()

			if res := wf.CommitDocument(ctx, so.cpf); !res.Found {
				return errReported
			}

			specialty, err := appointment.ParseSpecialty(so.specialty)
			if err != nil {
				return err
			}
			if err := wf.ChangeSpecialty(ctx, specialty); err != nil && !errors.Is(err, appointment.ErrNotFound) {
				return a.fail(err)
			}
			if so.practitionerID != 0 {
				if err := wf.SelectPractitioner(so.practitionerID); err != nil {
					return a.fail(err)
				}
			}

			d := wf.Draft()
			d.SetComplaint(so.complaint)
			if err := d.SetDateTime(so.dateTime); err != nil {
				return err
			}
			if so.status != "" {
				if err := d.SetStatus(appointment.Status(so.status)); err != nil {
					return err
				}
			}
			if err := d.SetPaymentMethod(appointment.PaymentMethod(so.payment)); err != nil {
				return err
			}

			created, err := wf.Submit(ctx)
			if err != nil {
				return a.fail(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consulta #%d em %s\n", created.ID, whatsapp.FormatDate(created.DateTime))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&so.cpf, "cpf", "", "CPF do paciente")
	f.StringVar(&so.specialty, "especialidade", "", "especialidade")
	f.Int64Var(&so.practitionerID, "medico", 0, "id do médico (opcional)")
	f.StringVar(&so.complaint, "queixa", "", "queixa do paciente")
	f.StringVar(&so.dateTime, "data", "", "data e hora, ex. 2024-05-10T14:30")
	f.StringVar(&so.status, "status", "", "status inicial (padrão: Em andamento)")
	f.StringVar(&so.payment, "pagamento", "", "Cartão de Crédito, Cartão de Débito, Pix ou Dinheiro")
	_ = cmd.MarkFlagRequired("cpf")
	_ = cmd.MarkFlagRequired("especialidade")
	return cmd
}

func updateCmd(opts *rootOptions) *cobra.Command {
	var (
		specialty      string
		complaint      string
		dateTime       string
		status         string
		practitionerID int64
	)
	cmd := &cobra.Command{
		Use:   "atualizar <id>",
		Short: "Atualiza uma consulta existente",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("id inválido: %q", args[0])
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			list, err := a.svc.ListAppointments(ctx)
			if err != nil {
				return a.fail(err)
			}
			var current *appointment.Appointment
			for i := range list {
				if list[i].ID == id {
					current = &list[i]
					break
				}
			}
			if current == nil {
				return fmt.Errorf("consulta %d não encontrada", id)
			}

			ed := appointment.NewEditor(a.svc)
			if err := ed.Open(ctx, *current); err != nil {
				return a.fail(err)
			}

			flags := cmd.Flags()
			if flags.Changed("especialidade") {
				ed.SetSpecialty(appointment.Specialty(specialty))
			}
			if flags.Changed("queixa") {
				ed.SetComplaint(complaint)
			}
			if flags.Changed("data") {
				if err := ed.SetDateTime(dateTime); err != nil {
					return err
				}
			}
			if flags.Changed("status") {
				if err := ed.SetStatus(appointment.Status(status)); err != nil {
					return err
				}
			}
			if flags.Changed("medico") {
				ed.SelectPractitioner(practitionerID)
			}

			saved, err := ed.Save(ctx)
			if err != nil {
				return a.fail(err)
			}
			return printAppointments(cmd.OutOrStdout(), []appointment.Appointment{*saved})
		},
	}

	f := cmd.Flags()
	f.StringVar(&specialty, "especialidade", "", "nova especialidade")
	f.StringVar(&complaint, "queixa", "", "nova queixa")
	f.StringVar(&dateTime, "data", "", "nova data e hora")
	f.StringVar(&status, "status", "", "novo status")
	f.Int64Var(&practitionerID, "medico", 0, "id do novo médico")
	return cmd
}

func printPractitioners(out io.Writer, list []appointment.Practitioner) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNOME\tESPECIALIDADE\tCRM")
	for _, p := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Specialty, p.CRM)
	}
	return w.Flush()
}

func printAppointments(out io.Writer, list []appointment.Appointment) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATA\tPACIENTE\tESPECIALIDADE\tMÉDICO\tSTATUS\tPAGAMENTO")
	for _, c := range list {
		patient, practitioner := "-", "Não especificado"
		if c.Patient != nil {
			patient = c.Patient.Name
		}
		if c.Practitioner != nil && c.Practitioner.Name != "" {
			practitioner = c.Practitioner.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, whatsapp.FormatDate(c.DateTime), patient, c.Specialty, practitioner, c.Status, c.PaymentMethod)
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "sim"
	}
	return "não"
}
