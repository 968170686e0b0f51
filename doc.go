/*
Package nemo-app-drive publishes the NEMO facility billing and usage data to Google Drive.

nemo-app-drive can be used from the command line but is really intended to be run from a cron job (or its own
'schedule' command) to keep the monthly billing CSV files and the per-year and all-years master CSV files in a
Google Drive folder (or a local directory or S3 bucket) up to date.

nemo-app-drive supports the following commands:

  - authorise, to authorise application access to Google Drive and Google Sheets
  - monthly, to upload the billing data for the current month and update the master CSV files
  - backfill, to upload the billing data for every month since the start year
  - create-master, to rebuild the master CSV files from the complete billing history
  - update-master, to replace the most recent records in the master CSV files with fresh billing data
  - usage-events, to upload the usage events for a month as one Excel workbook per tool
  - sanity-check, to create an Excel workbook for checking a month of billing data
  - check-duplicates, invalid-dates and compare, to report on the integrity of the master CSV files
  - schedule, to run the monthly upload and master update on a cron schedule
  - history, to list the most recent master updates from the audit log
  - get, to download a master CSV file or a Google Sheets worksheet to a local file
  - put, to upload a master CSV file or a local file to a Google Sheets worksheet
*/
package drive
