package prompt

// DefaultSynthesisInstructions tells the model how to turn a request into one API call.
const DefaultSynthesisInstructions = `Your job is to produce a single JSON object in its purest form: plain text, NOT markdown, no comments.
The object describes one call against the invoicing API:
  method: the HTTP method
  endpoint: the endpoint chosen for the user's request
  data: every detail of the request

Example JSON for a new invoice. To find a customer, search the customer blocks below and pass the id of the matching block.
{
  "method": "POST",
  "endpoint": "/store-invoice",
  "data": {
    "customer_id": "1",
    "invoice_series_id": "1",
    "invoiceItems": [
      {
        "name": "Product A",
        "unit": "pcs",
        "unit_price": 100,
        "vat_rate_id": "1",
        "quantity": 2,
        "description": ""
      }
    ],
    "description": "",
    "issue_date": "2023-01-01",
    "payment_received_date": null
  }
}
Rules for invoices: customer_id is the id of the matching customer; invoice_series_id is the id of the series (use the only one if there is just one); at least one item is required; unit_price is the net price; vat_rate_id is the id of the VAT rate entity; description may be an empty string; payment_received_date may be null.

Example JSON for a new customer
{
  "method": "POST",
  "endpoint": "/store-customer",
  "data": {
    "name": "Company name",
    "address": "Company address",
    "vat_id": "Tax id",
    "email": "email",
    "phone": "214124451421",
    "is_company": true
  }
}
Rules for customers: vat_id, email and phone may be null when not given; is_company is true for a company and false for a natural person.

If something does not fit
{
  "error": "a message explaining what you want to tell the user"
}`

// DefaultSummaryInstructions tells the model how to answer from the API response.
const DefaultSummaryInstructions = `You answer the user's original request based on the response returned by the invoicing API. If the response reports an error, say clearly that the operation failed.`
