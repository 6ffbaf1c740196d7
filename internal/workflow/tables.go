package workflow

// OrderStatus is the lifecycle state of a customer order.
type OrderStatus string

const (
	OrderNew          OrderStatus = "new"
	OrderWaitingSizes OrderStatus = "waiting_sizes"
	OrderInvoiced     OrderStatus = "invoiced"
	OrderProduction   OrderStatus = "production"
	OrderShipped      OrderStatus = "shipped"
	OrderCompleted    OrderStatus = "completed"
)

// Orders move strictly forward one step at a time.
var Orders = New("order", map[OrderStatus][]OrderStatus{
	OrderNew:          {OrderWaitingSizes},
	OrderWaitingSizes: {OrderInvoiced},
	OrderInvoiced:     {OrderProduction},
	OrderProduction:   {OrderShipped},
	OrderShipped:      {OrderCompleted},
	OrderCompleted:    {},
})

// QuoteStatus is the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
	QuoteExpired  QuoteStatus = "expired"
)

var Quotes = New("quote", map[QuoteStatus][]QuoteStatus{
	QuoteDraft:    {QuoteSent},
	QuoteSent:     {QuoteAccepted, QuoteRejected, QuoteExpired, QuoteDraft},
	QuoteAccepted: {},
	QuoteRejected: {},
	QuoteExpired:  {QuoteDraft},
})

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceSent          InvoiceStatus = "sent"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

var Invoices = New("invoice", map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:         {InvoiceSent, InvoiceCancelled},
	InvoiceSent:          {InvoicePartiallyPaid, InvoicePaid, InvoiceCancelled},
	InvoicePartiallyPaid: {InvoicePaid},
	InvoicePaid:          {},
	InvoiceCancelled:     {},
})

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

var Tasks = New("task", map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskInProgress, TaskCancelled},
	TaskInProgress: {TaskPending, TaskCompleted, TaskCancelled},
	TaskCompleted:  {},
	TaskCancelled:  {},
})

// JobStatus is the lifecycle state of a manufacturing job.
type JobStatus string

const (
	JobPending      JobStatus = "pending"
	JobCutting      JobStatus = "cutting"
	JobPrinting     JobStatus = "printing"
	JobQualityCheck JobStatus = "quality_check"
	JobPackaging    JobStatus = "packaging"
	JobCompleted    JobStatus = "completed"
)

// Jobs allow one backward edge: a failed quality check returns the batch to printing.
var Jobs = New("manufacturing job", map[JobStatus][]JobStatus{
	JobPending:      {JobCutting},
	JobCutting:      {JobPrinting},
	JobPrinting:     {JobQualityCheck},
	JobQualityCheck: {JobPackaging, JobPrinting},
	JobPackaging:    {JobCompleted},
	JobCompleted:    {},
})
