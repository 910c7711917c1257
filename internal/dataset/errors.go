package dataset

import "fmt"

// ColumnNotFoundError is returned when a required column is absent.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found in dataset", e.Column)
}

// EmptyDatasetError is returned when no rows survive null dropping.
type EmptyDatasetError struct {
	Location string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("dataset %q has no usable rows", e.Location)
}

// DatasetNotFoundError is returned when the dataset location does not exist.
type DatasetNotFoundError struct {
	Location string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("dataset %q not found", e.Location)
}
