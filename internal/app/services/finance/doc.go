// Package finance implements the mortgage, affordability and investment
// calculators. All functions are pure; monetary results are rounded to cents
// and rates are expressed in percent.
package finance
