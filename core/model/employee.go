package model

// EmployeeStatus tracks whether a crew member is committed to a tournee.
type EmployeeStatus string

const (
	EmployeeFree EmployeeStatus = "FREE"
	EmployeeBusy EmployeeStatus = "BUSY"
)

// Employee is a crew member assignable to tournees.
type Employee struct {
	ID     string
	Name   string
	Status EmployeeStatus
}

// AvailableForShift reports whether the employee can join a new crew.
// A zero-value status counts as free.
func (e Employee) AvailableForShift() bool {
	return e.Status == "" || e.Status == EmployeeFree
}
