package ilerr

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// enableDebugErrorPrinting makes errors include their stacktrace when printed
const enableDebugErrorPrinting bool = false
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	InfiniteType
	BoundNotSatisfied
	CapabilityNotFound
	ConflictingImplementation
	ConflictingCapability
	AliasNotFound
	CyclicAlias
	RecursionDepthExceeded
	InvalidAlias
	TypeMismatch
	SolverIterationLimit
	UnknownLifetimeBound
	RegionBoundNotSatisfied
	RegionConstraintViolated
	MissingRegion
	ConstEval
	MissingConstParameter
	UnknownAssociatedType
	MissingAssociatedType
	MalformedType
)

type IleError interface {
	Error() string
	Code() ErrCode

	withStack([]byte) IleError
	getStack() []byte
}

func FormatWithCode(e IleError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			stack = strings.Split(stack, "\n")[6]
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

func New[E IleError](err E) IleError {
	return err.withStack(debug.Stack())
}

type NewInfiniteType struct {
	Var   string
	Type  string
	stack []byte
}

func (e NewInfiniteType) Error() string {
	return fmt.Sprintf("infinite type: cannot bind %s to %s, which contains it", e.Var, e.Type)
}
func (e NewInfiniteType) Code() ErrCode    { return InfiniteType }
func (e NewInfiniteType) getStack() []byte { return e.stack }
func (e NewInfiniteType) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewBoundNotSatisfied struct {
	Type   string
	Bound  string
	Reason string
	stack  []byte
}

func (e NewBoundNotSatisfied) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("type '%s' does not satisfy bound '%s': %s", e.Type, e.Bound, e.Reason)
	}
	return fmt.Sprintf("type '%s' does not satisfy bound '%s'", e.Type, e.Bound)
}
func (e NewBoundNotSatisfied) Code() ErrCode    { return BoundNotSatisfied }
func (e NewBoundNotSatisfied) getStack() []byte { return e.stack }
func (e NewBoundNotSatisfied) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewCapabilityNotFound struct {
	Name  string
	stack []byte
}

func (e NewCapabilityNotFound) Error() string {
	return fmt.Sprintf("capability '%s' is not declared", e.Name)
}
func (e NewCapabilityNotFound) Code() ErrCode    { return CapabilityNotFound }
func (e NewCapabilityNotFound) getStack() []byte { return e.stack }
func (e NewCapabilityNotFound) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewConflictingImplementation struct {
	Capability string
	Type       string
	Existing   string
	stack      []byte
}

func (e NewConflictingImplementation) Error() string {
	return fmt.Sprintf("conflicting implementations of '%s' for type '%s' (overlaps with impl for '%s')", e.Capability, e.Type, e.Existing)
}
func (e NewConflictingImplementation) Code() ErrCode    { return ConflictingImplementation }
func (e NewConflictingImplementation) getStack() []byte { return e.stack }
func (e NewConflictingImplementation) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewConflictingCapability struct {
	Name  string
	stack []byte
}

func (e NewConflictingCapability) Error() string {
	return fmt.Sprintf("capability '%s' is declared more than once", e.Name)
}
func (e NewConflictingCapability) Code() ErrCode    { return ConflictingCapability }
func (e NewConflictingCapability) getStack() []byte { return e.stack }
func (e NewConflictingCapability) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewAliasNotFound struct {
	Name  string
	stack []byte
}

func (e NewAliasNotFound) Error() string {
	return fmt.Sprintf("type alias '%s' is not defined", e.Name)
}
func (e NewAliasNotFound) Code() ErrCode    { return AliasNotFound }
func (e NewAliasNotFound) getStack() []byte { return e.stack }
func (e NewAliasNotFound) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewCyclicAlias struct {
	Name  string
	stack []byte
}

func (e NewCyclicAlias) Error() string {
	return fmt.Sprintf("type alias '%s' refers to itself", e.Name)
}
func (e NewCyclicAlias) Code() ErrCode    { return CyclicAlias }
func (e NewCyclicAlias) getStack() []byte { return e.stack }
func (e NewCyclicAlias) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewRecursionDepthExceeded struct {
	Name  string
	Limit int
	Chain []string
	stack []byte
}

func (e NewRecursionDepthExceeded) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("expanding '%s' exceeded the recursion limit of %d (via %s)", e.Name, e.Limit, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("expanding '%s' exceeded the recursion limit of %d", e.Name, e.Limit)
}
func (e NewRecursionDepthExceeded) Code() ErrCode    { return RecursionDepthExceeded }
func (e NewRecursionDepthExceeded) getStack() []byte { return e.stack }
func (e NewRecursionDepthExceeded) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewInvalidAlias struct {
	Name   string
	Reason string
	stack  []byte
}

func (e NewInvalidAlias) Error() string {
	return fmt.Sprintf("invalid type alias '%s': %s", e.Name, e.Reason)
}
func (e NewInvalidAlias) Code() ErrCode    { return InvalidAlias }
func (e NewInvalidAlias) getStack() []byte { return e.stack }
func (e NewInvalidAlias) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewTypeMismatch struct {
	Expected string
	Found    string
	Context  string
	stack    []byte
}

func (e NewTypeMismatch) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("type mismatch in %s: expected '%s', but found '%s'", e.Context, e.Expected, e.Found)
	}
	return fmt.Sprintf("type mismatch: expected '%s', but found '%s'", e.Expected, e.Found)
}
func (e NewTypeMismatch) Code() ErrCode    { return TypeMismatch }
func (e NewTypeMismatch) getStack() []byte { return e.stack }
func (e NewTypeMismatch) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewSolverIterationLimit struct {
	Limit   int
	Pending int
	stack   []byte
}

func (e NewSolverIterationLimit) Error() string {
	return fmt.Sprintf("region constraints did not converge after %d iterations (%d constraints pending)", e.Limit, e.Pending)
}
func (e NewSolverIterationLimit) Code() ErrCode    { return SolverIterationLimit }
func (e NewSolverIterationLimit) getStack() []byte { return e.stack }
func (e NewSolverIterationLimit) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUnknownLifetimeBound struct {
	Region string
	Bound  string
	stack  []byte
}

func (e NewUnknownLifetimeBound) Error() string {
	return fmt.Sprintf("region bound '%s: %s' refers to an undeclared region", e.Region, e.Bound)
}
func (e NewUnknownLifetimeBound) Code() ErrCode    { return UnknownLifetimeBound }
func (e NewUnknownLifetimeBound) getStack() []byte { return e.stack }
func (e NewUnknownLifetimeBound) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewRegionBoundNotSatisfied struct {
	Region string
	Bound  string
	stack  []byte
}

func (e NewRegionBoundNotSatisfied) Error() string {
	return fmt.Sprintf("region '%s' does not satisfy bound '%s'", e.Region, e.Bound)
}
func (e NewRegionBoundNotSatisfied) Code() ErrCode    { return RegionBoundNotSatisfied }
func (e NewRegionBoundNotSatisfied) getStack() []byte { return e.stack }
func (e NewRegionBoundNotSatisfied) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewRegionConstraintViolated struct {
	Longer  string
	Shorter string
	stack   []byte
}

func (e NewRegionConstraintViolated) Error() string {
	return fmt.Sprintf("region '%s' is required to outlive '%s', but no declared bound proves it", e.Longer, e.Shorter)
}
func (e NewRegionConstraintViolated) Code() ErrCode    { return RegionConstraintViolated }
func (e NewRegionConstraintViolated) getStack() []byte { return e.stack }
func (e NewRegionConstraintViolated) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewMissingRegion struct {
	Function string
	Inputs   int
	stack    []byte
}

func (e NewMissingRegion) Error() string {
	if e.Inputs == 0 {
		return fmt.Sprintf("missing region specifier in return type of '%s': there are no input regions to elide from", e.Function)
	}
	return fmt.Sprintf("missing region specifier in return type of '%s': %d input regions make elision ambiguous", e.Function, e.Inputs)
}
func (e NewMissingRegion) Code() ErrCode    { return MissingRegion }
func (e NewMissingRegion) getStack() []byte { return e.stack }
func (e NewMissingRegion) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewConstEval struct {
	Expr   string
	Reason string
	stack  []byte
}

func (e NewConstEval) Error() string {
	return fmt.Sprintf("cannot evaluate constant expression '%s': %s", e.Expr, e.Reason)
}
func (e NewConstEval) Code() ErrCode    { return ConstEval }
func (e NewConstEval) getStack() []byte { return e.stack }
func (e NewConstEval) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewMissingConstParameter struct {
	Owner string
	Param string
	stack []byte
}

func (e NewMissingConstParameter) Error() string {
	return fmt.Sprintf("const parameter '%s' of '%s' has no value and no default", e.Param, e.Owner)
}
func (e NewMissingConstParameter) Code() ErrCode    { return MissingConstParameter }
func (e NewMissingConstParameter) getStack() []byte { return e.stack }
func (e NewMissingConstParameter) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewUnknownAssociatedType struct {
	Capability string
	Name       string
	stack      []byte
}

func (e NewUnknownAssociatedType) Error() string {
	return fmt.Sprintf("capability '%s' declares no associated type '%s'", e.Capability, e.Name)
}
func (e NewUnknownAssociatedType) Code() ErrCode    { return UnknownAssociatedType }
func (e NewUnknownAssociatedType) getStack() []byte { return e.stack }
func (e NewUnknownAssociatedType) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewMissingAssociatedType struct {
	Capability string
	Type       string
	Name       string
	stack      []byte
}

func (e NewMissingAssociatedType) Error() string {
	return fmt.Sprintf("implementation of '%s' for '%s' is missing associated type '%s'", e.Capability, e.Type, e.Name)
}
func (e NewMissingAssociatedType) Code() ErrCode    { return MissingAssociatedType }
func (e NewMissingAssociatedType) getStack() []byte { return e.stack }
func (e NewMissingAssociatedType) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}

type NewMalformedType struct {
	Text   string
	Reason string
	stack  []byte
}

func (e NewMalformedType) Error() string {
	return fmt.Sprintf("malformed type '%s': %s", e.Text, e.Reason)
}
func (e NewMalformedType) Code() ErrCode    { return MalformedType }
func (e NewMalformedType) getStack() []byte { return e.stack }
func (e NewMalformedType) withStack(stack []byte) IleError {
	e.stack = stack
	return e
}
